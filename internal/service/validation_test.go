package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/pkg/errors"
)

func TestValidateShipping(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.ShippingInfo)
		invalid []string
	}{
		{name: "valid", mutate: func(*domain.ShippingInfo) {}},
		{name: "phone with spaces", mutate: func(s *domain.ShippingInfo) { s.Phone = " 91234 56789 " }},
		{name: "phone starting with 5", mutate: func(s *domain.ShippingInfo) { s.Phone = "5123456789" }, invalid: []string{"phone"}},
		{name: "short phone", mutate: func(s *domain.ShippingInfo) { s.Phone = "987654321" }, invalid: []string{"phone"}},
		{name: "zip with letters", mutate: func(s *domain.ShippingInfo) { s.Zip = "42A001" }, invalid: []string{"zip"}},
		{name: "missing name and street", mutate: func(s *domain.ShippingInfo) { s.Name = ""; s.Street = "  " }, invalid: []string{"name", "street"}},
		{name: "missing phone is reported once", mutate: func(s *domain.ShippingInfo) { s.Phone = "" }, invalid: []string{"phone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := validShipping()
			tt.mutate(&info)
			cleaned, err := ValidateShipping(info)
			if len(tt.invalid) == 0 {
				require.NoError(t, err)
				assert.NotContains(t, cleaned.Phone, " ")
				assert.NotContains(t, cleaned.Zip, " ")
				return
			}
			var ve *errors.ErrValidation
			require.ErrorAs(t, err, &ve)
			assert.Len(t, ve.Fields, len(tt.invalid))
			for _, field := range tt.invalid {
				assert.Contains(t, ve.Fields, field)
			}
		})
	}
}

func TestValidatePayment(t *testing.T) {
	at := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	card := func(number, expiry, cvv string) *domain.CardDetails {
		return &domain.CardDetails{Number: number, Expiry: expiry, CVV: cvv, HolderName: "Ravi Kumar"}
	}
	razorpay := domain.PaymentInfo{Method: domain.PaymentMethodRazorpay}

	tests := []struct {
		name    string
		info    domain.PaymentInfo
		card    *domain.CardDetails
		invalid string
	}{
		{name: "cod needs no card", info: domain.PaymentInfo{Method: domain.PaymentMethodCOD}},
		{name: "cod ignores a bad card", info: domain.PaymentInfo{Method: domain.PaymentMethodCOD}, card: card("1", "13/99", "1")},
		{name: "unknown method", info: domain.PaymentInfo{Method: "upi"}, invalid: "method"},
		{name: "razorpay without card", info: razorpay, invalid: "card"},
		{name: "valid card", info: razorpay, card: card("4111111111111111", "12/27", "123")},
		{name: "current month is valid", info: razorpay, card: card("4111111111111111", "10/26", "1234")},
		{name: "last month expired", info: razorpay, card: card("4111111111111111", "09/26", "123"), invalid: "expiryDate"},
		{name: "bad expiry format", info: razorpay, card: card("4111111111111111", "1/27", "123"), invalid: "expiryDate"},
		{name: "short card number", info: razorpay, card: card("411111111111", "12/27", "123"), invalid: "cardNumber"},
		{name: "bad cvv", info: razorpay, card: card("4111111111111111", "12/27", "12a"), invalid: "cvv"},
		{name: "missing holder", info: razorpay, card: &domain.CardDetails{Number: "4111111111111111", Expiry: "12/27", CVV: "123"}, invalid: "card"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayment(tt.info, tt.card, at)
			if tt.invalid == "" {
				require.NoError(t, err)
				return
			}
			var ve *errors.ErrValidation
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.invalid)
		})
	}
}
