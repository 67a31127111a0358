package tools

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/agrismart/assistant/internal/inventory"
)

func farmRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewFarmRegistry(inventory.Default(), WithBookingIDs(func() string { return "RNT-4821" }))
}

func toolError(t *testing.T, err error) *Error {
	t.Helper()
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *tools.Error", err)
	}
	return te
}

func TestListItems(t *testing.T) {
	out, err := farmRegistry(t).Execute(context.Background(), ListItemsTool, nil)
	if err != nil {
		t.Fatalf("list_items: %v", err)
	}
	items := out.([]ItemSummary)
	if len(items) != 9 {
		t.Fatalf("len = %d, want 9", len(items))
	}
	if items[1].Name != "Drone" || items[1].RentalRate != "₹800/acre" {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestGetItemDetails(t *testing.T) {
	r := farmRegistry(t)

	out, err := r.Execute(context.Background(), GetItemDetailsTool, map[string]any{"name": "power TILLER"})
	if err != nil {
		t.Fatalf("get_item_details: %v", err)
	}
	if it := out.(inventory.Item); it.ID != 7 {
		t.Errorf("ID = %d, want 7", it.ID)
	}

	_, err = r.Execute(context.Background(), GetItemDetailsTool, map[string]any{"name": "Dron"})
	te := toolError(t, err)
	if te.Code != CodeNotFound {
		t.Errorf("Code = %q, want %q", te.Code, CodeNotFound)
	}
	want := "Item 'Dron' not found. Please use list_items to see available equipment."
	if te.Message != want {
		t.Errorf("Message = %q, want %q", te.Message, want)
	}

	_, err = r.Execute(context.Background(), GetItemDetailsTool, map[string]any{})
	if te := toolError(t, err); te.Code != CodeInvalidArguments {
		t.Errorf("Code = %q, want %q", te.Code, CodeInvalidArguments)
	}
}

func TestBookItem_Drone(t *testing.T) {
	out, err := farmRegistry(t).Execute(context.Background(), BookItemTool, map[string]any{"itemId": 2.0, "duration": 5.0})
	if err != nil {
		t.Fatalf("book_item: %v", err)
	}
	b := out.(Booking)
	if !b.Success || b.BookingID != "RNT-4821" || b.ItemName != "Drone" {
		t.Errorf("booking = %+v", b)
	}
	if b.Message != "Successfully booked Drone for 5 units." {
		t.Errorf("Message = %q", b.Message)
	}
	if b.TotalCost != "Check local rates (Approx: ₹800/acre x 5)" {
		t.Errorf("TotalCost = %q", b.TotalCost)
	}
}

func TestBookItem_Failures(t *testing.T) {
	minted := 0
	r := NewFarmRegistry(inventory.Default(), WithBookingIDs(func() string {
		minted++
		return "RNT-1"
	}))

	tests := []struct {
		name     string
		args     map[string]any
		wantCode string
		wantMsg  string
	}{
		{"purchase only", map[string]any{"itemId": 6.0, "duration": 2.0}, CodeNotRentable, "Solar Water Pump is only available for purchase, not rental."},
		{"sensor purchase only", map[string]any{"itemId": "9", "duration": 1.0}, CodeNotRentable, "Soil Moisture Sensor is only available for purchase, not rental."},
		{"unknown id", map[string]any{"itemId": 42.0, "duration": 2.0}, CodeNotFound, "Item ID 42 not found."},
		{"fractional id", map[string]any{"itemId": 2.5, "duration": 2.0}, CodeInvalidArguments, ""},
		{"zero duration", map[string]any{"itemId": 2.0, "duration": 0.0}, CodeInvalidArguments, ""},
		{"missing duration", map[string]any{"itemId": 2.0}, CodeInvalidArguments, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(context.Background(), BookItemTool, tt.args)
			te := toolError(t, err)
			if te.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", te.Code, tt.wantCode)
			}
			if tt.wantMsg != "" && te.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", te.Message, tt.wantMsg)
			}
		})
	}
	if minted != 0 {
		t.Errorf("failed bookings minted %d ids", minted)
	}
}

func TestRandomBookingID(t *testing.T) {
	re := regexp.MustCompile(`^RNT-\d{1,4}$`)
	for range 50 {
		if id := RandomBookingID(); !re.MatchString(id) {
			t.Fatalf("RandomBookingID() = %q", id)
		}
	}
}
