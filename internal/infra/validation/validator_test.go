package validation

import (
	"errors"
	"testing"

	"signage-analytics/internal/domain"
)

type entry struct {
	TVCode string `json:"tvCode" validate:"required"`
	AdID   int64  `json:"adId" validate:"gt=0"`
}

type request struct {
	Status  string  `json:"status" validate:"omitempty,oneof=online offline maintenance"`
	Entries []entry `json:"entries" validate:"required,min=1,dive"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name  string
		req   request
		field string
		msg   string
	}{
		{"ok", request{Entries: []entry{{TVCode: "a", AdID: 1}}}, "", ""},
		{"missing entries", request{}, "entries", "entries: is required"},
		{"bad status", request{Status: "x", Entries: []entry{{TVCode: "a", AdID: 1}}}, "status", "status: must be one of: online offline maintenance"},
		{"nested", request{Entries: []entry{{AdID: 1}}}, "entries[0].tvCode", "entries[0].tvCode: is required"},
		{"gt", request{Entries: []entry{{TVCode: "a"}}}, "entries[0].adId", "entries[0].adId: must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.req)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if got := domain.FieldOf(err); got != tt.field {
				t.Fatalf("field = %q, want %q", got, tt.field)
			}
			if err.Error() != tt.msg {
				t.Fatalf("message = %q, want %q", err.Error(), tt.msg)
			}
		})
	}
}
