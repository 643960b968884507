package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/pkg/errors"
)

var (
	phonePattern  = regexp.MustCompile(`^[6-9]\d{9}$`)
	zipPattern    = regexp.MustCompile(`^\d{6}$`)
	cardPattern   = regexp.MustCompile(`^\d{13,19}$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3,4}$`)
)

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// ValidateShipping checks an Indian delivery address. Phone and PIN are
// returned with spaces removed.
func ValidateShipping(info domain.ShippingInfo) (domain.ShippingInfo, error) {
	fields := map[string]string{}
	required := map[string]string{
		"name":   info.Name,
		"phone":  info.Phone,
		"street": info.Street,
		"city":   info.City,
		"state":  info.State,
		"zip":    info.Zip,
	}
	for field, v := range required {
		if strings.TrimSpace(v) == "" {
			fields[field] = "required"
		}
	}

	info.Phone = stripSpaces(info.Phone)
	info.Zip = stripSpaces(info.Zip)
	if _, missing := fields["phone"]; !missing && !phonePattern.MatchString(info.Phone) {
		fields["phone"] = "must be a 10-digit number starting with 6-9"
	}
	if _, missing := fields["zip"]; !missing && !zipPattern.MatchString(info.Zip) {
		fields["zip"] = "must be a 6-digit PIN code"
	}

	if len(fields) > 0 {
		return info, &errors.ErrValidation{Message: "invalid shipping information", Fields: fields}
	}
	return info, nil
}

// ValidatePayment checks the payment choice; card details are only required
// (and only checked) for online payment
func ValidatePayment(info domain.PaymentInfo, card *domain.CardDetails, at time.Time) error {
	if !info.Method.IsValid() {
		return &errors.ErrValidation{
			Message: "invalid payment method",
			Fields:  map[string]string{"method": "must be razorpay or cod"},
		}
	}
	if info.Method != domain.PaymentMethodRazorpay {
		return nil
	}
	if card == nil {
		return &errors.ErrValidation{
			Message: "card details are required",
			Fields:  map[string]string{"card": "required"},
		}
	}

	fields := map[string]string{}
	if card.Number == "" || card.Expiry == "" || card.CVV == "" || strings.TrimSpace(card.HolderName) == "" {
		fields["card"] = "all card fields are required"
	}
	if card.Number != "" && !cardPattern.MatchString(stripSpaces(card.Number)) {
		fields["cardNumber"] = "must be 13 to 19 digits"
	}
	if card.Expiry != "" && !validExpiry(card.Expiry, at) {
		fields["expiryDate"] = "must be MM/YY and not in the past"
	}
	if card.CVV != "" && !cvvPattern.MatchString(card.CVV) {
		fields["cvv"] = "must be 3 or 4 digits"
	}
	if len(fields) > 0 {
		return &errors.ErrValidation{Message: "invalid card details", Fields: fields}
	}
	return nil
}

// validExpiry accepts the current month
func validExpiry(expiry string, at time.Time) bool {
	if !expiryPattern.MatchString(expiry) {
		return false
	}
	month, _ := strconv.Atoi(expiry[:2])
	year, _ := strconv.Atoi(expiry[3:])
	currentYear := at.Year() % 100
	currentMonth := int(at.Month())
	if year < currentYear || (year == currentYear && month < currentMonth) {
		return false
	}
	return true
}
