package validators

import (
	"goride-payments/internal/models"
)

// ValidateCreateRide sanitizes the free-text fields and validates the request.
func ValidateCreateRide(req *models.CreateRideRequest) ValidationErrors {
	req.OriginAddress = SanitizeInput(req.OriginAddress)
	req.DestinationAddress = SanitizeInput(req.DestinationAddress)
	req.UserID = SanitizeInput(req.UserID)

	return ValidateStruct(req)
}
