package services

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"goride-payments/internal/models"
	"goride-payments/pkg/events"
	"goride-payments/pkg/logger"
	"goride-payments/pkg/websocket"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestAppliedCallbackReachesStreamWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(logger.NewNop())
	go hub.Run(ctx)

	store := newMemoryStore(1)
	repo := &fakePaymentRepo{store: store}
	checkout, merchant := "ws_1", "mr_1"
	require.NoError(t, repo.Create(ctx, &models.Payment{
		RideID:            1,
		Phone:             "254712345678",
		Amount:            500,
		CheckoutRequestID: &checkout,
		MerchantRequestID: &merchant,
		Status:            models.PaymentStatusPending,
	}))

	publisher := events.NewMultiPublisher(websocket.NewHubPublisher(hub))
	service := NewCallbackService(repo, &fakeAuditRepo{}, publisher, nil, nil, logger.NewNop())
	statusService := NewStatusService(repo, &fakeRideRepo{store: store})

	stream := websocket.NewHandler(hub, func(ctx context.Context, rideID int64) (interface{}, error) {
		return statusService.GetLatestPaymentForBooking(ctx, rideID)
	}, websocket.Options{}, logger.NewNop())
	router := gin.New()
	router.GET("/stream/:bookingId", stream.StreamBookingPayments)
	server := httptest.NewServer(router)
	defer server.Close()

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/stream/1", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() string {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		return string(data)
	}

	snapshot := read()
	assert.Equal(t, "snapshot", gjson.Get(snapshot, "type").String())
	assert.Equal(t, "PENDING", gjson.Get(snapshot, "data.status").String())

	ack, err := service.HandleCallback(ctx, []byte(successCallback), CallbackMeta{RequestID: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionApplied, ack.Outcome)

	pushed := read()
	assert.Equal(t, "payment.resolved", gjson.Get(pushed, "type").String())
	assert.Equal(t, int64(1), gjson.Get(pushed, "rideId").Int())
	assert.Equal(t, "SUCCESS", gjson.Get(pushed, "data.status").String())
}
