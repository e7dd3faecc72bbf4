package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mirrors the shapes the product handlers decode.
type listingBody struct {
	Name     string  `json:"name" validate:"required"`
	Category string  `json:"category" validate:"required,oneof=book stationery flower"`
	Price    float64 `json:"price" validate:"gte=0"`
	Discount float64 `json:"discount" validate:"gte=0,lte=100"`
}

type reserveBody struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

func decodeBody(t *testing.T, payload any, into any) error {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/products/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return DecodeAndValidate(req, into)
}

// Feature: storefront-core, Property: a reservation quantity below one
// never validates; anything from one up always does.
func TestProperty_ReserveQuantityMustBePositive(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("quantity >= 1 passes, everything else fails", prop.ForAll(
		func(quantity int) bool {
			var body reserveBody
			err := decodeBody(t, map[string]int{"quantity": quantity}, &body)

			if quantity >= 1 {
				return err == nil && body.Quantity == quantity
			}
			return err != nil
		},
		gen.IntRange(-5, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront-core, Property: discounts are percentages; values
// outside 0..100 are rejected before they reach the catalog.
func TestProperty_DiscountStaysWithinPercentRange(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("discount in [0,100] passes, outside fails", prop.ForAll(
		func(discount float64) bool {
			var body listingBody
			err := decodeBody(t, map[string]interface{}{
				"name":     "Peony Bouquet",
				"category": "flower",
				"price":    12.5,
				"discount": discount,
			}, &body)

			if discount >= 0 && discount <= 100 {
				return err == nil
			}
			return err != nil
		},
		gen.Float64Range(-50, 150),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestDecodeAndValidate_MissingRequiredFieldsFail(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"no name":     {"category": "book", "price": 9.99},
		"no category": {"name": "Notebook", "price": 4.5},
		"empty body":  {},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			var body listingBody
			assert.Error(t, decodeBody(t, payload, &body))
		})
	}
}

func TestDecodeAndValidate_UnknownCategoryRejected(t *testing.T) {
	var body listingBody
	err := decodeBody(t, map[string]interface{}{
		"name":     "Desk Lamp",
		"category": "furniture",
		"price":    30.0,
	}, &body)
	require.Error(t, err)

	fieldErrors := FormatValidationErrors(err)
	require.Len(t, fieldErrors, 1)
	assert.Equal(t, "Category", fieldErrors[0].Field)
	assert.True(t, strings.HasPrefix(fieldErrors[0].Message, "Must be one of:"), fieldErrors[0].Message)
}

// Misspelled fields must fail decoding instead of silently validating a
// half-empty struct.
func TestDecodeAndValidate_UnknownFieldsRejected(t *testing.T) {
	var body reserveBody
	err := decodeBody(t, map[string]interface{}{"qty": 3}, &body)
	assert.Error(t, err)
}

func TestFormatValidationErrors_EveryEntryNamesItsField(t *testing.T) {
	var body listingBody
	err := decodeBody(t, map[string]interface{}{
		"category": "furniture",
		"price":    -1.0,
		"discount": 250.0,
	}, &body)
	require.Error(t, err)

	fieldErrors := FormatValidationErrors(err)
	require.NotEmpty(t, fieldErrors)
	for _, fe := range fieldErrors {
		assert.NotEmpty(t, fe.Field)
		assert.NotEmpty(t, fe.Message)
	}
}
