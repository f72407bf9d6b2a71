package validation

import (
	"testing"

	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Qty   int    `json:"qty" validate:"min=1,max=5"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(sample{Email: "nope", Qty: 9})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected map details, got %T", typed.Details())
	}
	if details["name"] != "is required" || details["email"] != "must be a valid email" || details["qty"] != "must be at most 5" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestStructAcceptsValid(t *testing.T) {
	if err := Struct(sample{Name: "a", Email: "a@example.com", Qty: 1}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
