package routes

import (
	handlers "goride-payments/internal/handlers/shared"
	"goride-payments/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupPaymentRoutes mounts the payment and booking endpoints. callbackGuard protects
// the provider webhook; stream may be nil when push updates are disabled.
func SetupPaymentRoutes(
	r *gin.RouterGroup,
	paymentHandler *handlers.PaymentHandler,
	rideHandler *handlers.RideHandler,
	stream *websocket.Handler,
	callbackGuard gin.HandlerFunc,
) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", rideHandler.CreateRide)
		bookings.GET("/:bookingId", rideHandler.GetRide)
		bookings.GET("/status/:bookingId", rideHandler.GetBookingStatus)
	}

	payments := r.Group("/payments")
	{
		payments.POST("/charge", paymentHandler.InitiateCharge)
		payments.POST("/callback", callbackGuard, paymentHandler.HandleCallback)

		payments.GET("/status", paymentHandler.GetPaymentStatus)
		payments.GET("/status/booking/:bookingId", paymentHandler.GetLatestPaymentForBooking)
		if stream != nil {
			payments.GET("/status/booking/:bookingId/stream", stream.StreamBookingPayments)
		}
	}
}
