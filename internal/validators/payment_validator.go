package validators

import (
	"fmt"

	"goride-payments/internal/models"
)

// ValidateChargeRequest checks presence first, then phone, then amount.
// The returned error wraps ErrMissingFields, ErrInvalidPhoneFormat or ErrInvalidAmount,
// or is a ValidationErrors for any other field rule.
func ValidateChargeRequest(req *models.ChargeRequest) error {
	if req == nil {
		return ErrMissingFields
	}

	if errs := ValidateStruct(req); len(errs) > 0 {
		if errs.HasTag("required") {
			return fmt.Errorf("%w: %s", ErrMissingFields, errs.Error())
		}
		return errs
	}

	if err := validate.Var(req.Phone, "mpesa_phone"); err != nil {
		return ErrInvalidPhoneFormat
	}

	if err := validate.Var(req.Amount.String(), "whole_amount"); err != nil {
		return ErrInvalidAmount
	}

	return nil
}

// ValidateSTKCallback rejects payloads that cannot be matched to any payment.
func ValidateSTKCallback(env *models.STKCallbackEnvelope) (*models.STKCallback, int, error) {
	if env == nil || env.Body == nil || env.Body.StkCallback == nil {
		return nil, 0, fmt.Errorf("%w: missing Body.stkCallback", ErrMalformedCallback)
	}

	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" && cb.MerchantRequestID == "" {
		return nil, 0, fmt.Errorf("%w: missing correlation keys", ErrMalformedCallback)
	}

	code, ok := cb.Code()
	if !ok {
		return nil, 0, fmt.Errorf("%w: missing or non-numeric ResultCode", ErrMalformedCallback)
	}

	return cb, code, nil
}
