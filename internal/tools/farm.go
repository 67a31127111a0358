package tools

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/agrismart/assistant/internal/inventory"
)

// Farm tool names exposed to the model.
const (
	ListItemsTool      = "list_items"
	GetItemDetailsTool = "get_item_details"
	BookItemTool       = "book_item"
)

// ItemSummary is one row of the list_items result.
type ItemSummary struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	RentalRate    string `json:"rentalRate"`
	PurchasePrice string `json:"purchasePrice"`
}

// Booking is the confirmation book_item returns. Bookings are not
// stored; the provider follows up out of band.
type Booking struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	BookingID    string  `json:"bookingId"`
	ItemID       int     `json:"itemId"`
	ItemName     string  `json:"itemName"`
	Duration     float64 `json:"duration"`
	TotalCost    string  `json:"totalCost"`
	Confirmation string  `json:"confirmation"`
}

// FarmOption configures the farm tools.
type FarmOption func(*farmTools)

// WithBookingIDs replaces the booking id generator.
func WithBookingIDs(next func() string) FarmOption {
	return func(f *farmTools) { f.nextBookingID = next }
}

// RandomBookingID returns "RNT-" followed by a random number below
// 10000. Ids are not guaranteed unique.
func RandomBookingID() string {
	return "RNT-" + strconv.Itoa(rand.IntN(10000))
}

type farmTools struct {
	catalog       inventory.Catalog
	nextBookingID func() string
}

// NewFarmRegistry returns a registry holding list_items,
// get_item_details and book_item over catalog. The handlers only read
// the catalog; they perform no I/O.
func NewFarmRegistry(catalog inventory.Catalog, opts ...FarmOption) *Registry {
	f := &farmTools{catalog: catalog, nextBookingID: RandomBookingID}
	for _, o := range opts {
		o(f)
	}

	r := NewRegistry()
	r.Register(&Tool{
		Name:        ListItemsTool,
		Description: "List all farm equipment available for rent or purchase, with rental rates and prices.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: f.listItems,
	})
	r.Register(&Tool{
		Name:        GetItemDetailsTool,
		Description: "Get full details of a piece of farm equipment by its exact name.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Equipment name, e.g. Drone or Power Tiller",
				},
			},
			"required": []string{"name"},
		},
		Handler: f.getItemDetails,
	})
	r.Register(&Tool{
		Name:        BookItemTool,
		Description: "Book a rentable piece of farm equipment for a duration. Items priced N/A for rental can only be purchased.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"itemId": map[string]any{
					"type":        "number",
					"description": "The id of the item to book, from list_items",
				},
				"duration": map[string]any{
					"type":        "number",
					"description": "Rental duration in the item's rate unit (hours or acres)",
				},
			},
			"required": []string{"itemId", "duration"},
		},
		Handler: f.bookItem,
	})
	return r
}

// Summarize returns the list_items rows for items, in order.
func Summarize(items []inventory.Item) []ItemSummary {
	out := make([]ItemSummary, 0, len(items))
	for _, it := range items {
		out = append(out, ItemSummary{
			ID:            it.ID,
			Name:          it.Name,
			Category:      it.Category,
			RentalRate:    it.RentalRate,
			PurchasePrice: it.PurchasePrice,
		})
	}
	return out
}

func (f *farmTools) listItems(_ context.Context, _ map[string]any) (any, error) {
	return Summarize(f.catalog.Items()), nil
}

func (f *farmTools) getItemDetails(_ context.Context, args map[string]any) (any, error) {
	name, ok := stringArg(args, "name")
	if !ok {
		return nil, invalidArgs("name is required")
	}
	it, ok := f.catalog.ByName(name)
	if !ok {
		return nil, notFound("Item '%s' not found. Please use %s to see available equipment.", name, ListItemsTool)
	}
	return it, nil
}

func (f *farmTools) bookItem(_ context.Context, args map[string]any) (any, error) {
	id, ok := intArg(args, "itemId")
	if !ok {
		return nil, invalidArgs("itemId must be a whole number")
	}
	duration, ok := numberArg(args, "duration")
	if !ok || duration <= 0 {
		return nil, invalidArgs("duration must be a positive number")
	}

	it, ok := f.catalog.ByID(id)
	if !ok {
		return nil, notFound("Item ID %d not found.", id)
	}
	if !it.Rentable() {
		return nil, &Error{
			Code:    CodeNotRentable,
			Message: fmt.Sprintf("%s is only available for purchase, not rental.", it.Name),
		}
	}

	units := strconv.FormatFloat(duration, 'f', -1, 64)
	return Booking{
		Success:      true,
		Message:      fmt.Sprintf("Successfully booked %s for %s units.", it.Name, units),
		BookingID:    f.nextBookingID(),
		ItemID:       it.ID,
		ItemName:     it.Name,
		Duration:     duration,
		TotalCost:    fmt.Sprintf("Check local rates (Approx: %s x %s)", it.RentalRate, units),
		Confirmation: "Your booking is confirmed. The provider will contact you shortly.",
	}, nil
}
