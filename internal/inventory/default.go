package inventory

var defaultItems = []Item{
	{
		ID:            1,
		Name:          "Harvester",
		Category:      "Heavy Machinery",
		PurchasePrice: "₹25,00,000",
		RentalRate:    "₹2,500/hr",
		Description:   "Automated harvesting for wheat, rice, and corn with grain loss sensors.",
		Efficiency:    "High",
		ImageURL:      "https://th.bing.com/th/id/OIP.TTrBK9AsJ1ttMR5yOtwODQHaD4?w=298&h=180&c=7&r=0&o=7&dpr=1.6&pid=1.7&rm=3",
		URL:           "https://www.claas-group.com/product/combine-harvesters",
	},
	{
		ID:            2,
		Name:          "Drone",
		Category:      "Smart Tech",
		PurchasePrice: "₹4,50,000",
		RentalRate:    "₹800/acre",
		Description:   "GPS-guided drone for precise pesticide and fertilizer application.",
		Efficiency:    "Ultra-High",
		ImageURL:      "https://tse2.mm.bing.net/th/id/OIP.TsoSe1Ii4Jhe-16sxcqnywHaE8?rs=1&pid=ImgDetMain&o=7&rm=3",
		URL:           "https://ag.dji.com/t40",
	},
	{
		ID:            3,
		Name:          "Compact Tractor 45HP",
		Category:      "Tractors",
		PurchasePrice: "₹6,50,000",
		RentalRate:    "₹600/hr",
		Description:   "Versatile 4WD tractor suitable for tilling, plowing, and hauling.",
		Efficiency:    "Medium",
		ImageURL:      "https://tse2.mm.bing.net/th/id/OIP.cxX1tUj68o_jdQEW90th1AHaHa?rs=1&pid=ImgDetMain&o=7&rm=3",
		URL:           "https://www.mahindratractor.com/tractors/mahindra-yuvo-tech-plus-475-di",
	},
	{
		ID:            4,
		Name:          "Laser Land Leveler",
		Category:      "Attachments",
		PurchasePrice: "₹3,20,000",
		RentalRate:    "₹1,200/hr",
		Description:   "Ensures perfectly level field for uniform water distribution.",
		Efficiency:    "High",
		ImageURL:      "https://www.fieldking.com/images/landscaping/leveler/sp/eco-planer-laser-guided-land-leveler/1.jpg",
		URL:           "https://ksagrotech.org/laser-land-leveler/",
	},
	{
		ID:            5,
		Name:          "Automatic Seed Drill",
		Category:      "Attachments",
		PurchasePrice: "₹85,000",
		RentalRate:    "₹400/hr",
		Description:   "Sows seeds at proper depth and distance for optimal growth.",
		Efficiency:    "High",
		ImageURL:      "https://th.bing.com/th/id/OIP._NIahpHGpRRRKupw_o-NqgHaE6?w=270&h=180&c=7&r=0&o=7&dpr=1.6&pid=1.7&rm=3",
		URL:           "https://ksagrotech.org/laser-land-leveler/",
	},
	{
		ID:            6,
		Name:          "Solar Water Pump",
		Category:      "Smart Tech",
		PurchasePrice: "₹3,50,000",
		RentalRate:    NotRentable,
		Description:   "Eco-friendly irrigation solution powered by solar energy.",
		Efficiency:    "High",
		ImageURL:      "https://images.unsplash.com/photo-1594911771131-0dfdbcf356ff?auto=format&fit=crop&w=800&q=80",
		URL:           "https://mnre.gov.in/solar-pumps/",
	},
	{
		ID:            7,
		Name:          "Power Tiller",
		Category:      "Heavy Machinery",
		PurchasePrice: "₹1,80,000",
		RentalRate:    "₹300/hr",
		Description:   "Multipurpose machine for soil preparation and inter-cultivation.",
		Efficiency:    "Medium",
		ImageURL:      "https://th.bing.com/th/id/OIP.XoxktBWmrl0mqCwjO7_CxgHaFj?w=249&h=187&c=7&r=0&o=7&dpr=1.6&pid=1.7&rm=3",
		URL:           "https://vsttractors.com/products/power-tillers",
	},
	{
		ID:            8,
		Name:          "Precision Planter",
		Category:      "Attachments",
		PurchasePrice: "₹1,20,000",
		RentalRate:    "₹500/hr",
		Description:   "Advanced planting system for optimal seed spacing and depth control.",
		Efficiency:    "High",
		ImageURL:      "https://images.unsplash.com/photo-1594911771131-0dfdbcf356ff?auto=format&fit=crop&w=400&q=80",
		URL:           "https://www.deere.com/en/planting-equipment/",
	},
	{
		ID:            9,
		Name:          "Soil Moisture Sensor",
		Category:      "Smart Tech",
		PurchasePrice: "₹15,000",
		RentalRate:    NotRentable,
		Description:   "IoT-enabled sensor for real-time soil moisture monitoring.",
		Efficiency:    "Ultra-High",
		ImageURL:      "https://images.unsplash.com/photo-1515150144380-bca9f1650ed9?auto=format&fit=crop&w=400&q=80",
		URL:           "https://www.netafim.com/en/digital-farming/netbeat/",
	},
}

// Default returns the built-in equipment catalog.
func Default() *Static {
	s, err := NewStatic(defaultItems)
	if err != nil {
		panic("inventory: built-in catalog invalid: " + err.Error())
	}
	return s
}
