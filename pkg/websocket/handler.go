package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"goride-payments/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeResolved = "payment.resolved"
)

// SnapshotFunc loads the current state sent to a subscriber right after it connects.
// A nil result is sent as null.
type SnapshotFunc func(ctx context.Context, rideID int64) (interface{}, error)

type Options struct {
	ReadBufferSize    int
	WriteBufferSize   int
	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxMessageSize    int64
	EnableCompression bool
	// AllowedOrigins limits browser origins; empty or "*" accepts any.
	AllowedOrigins []string
}

func (o *Options) withDefaults() *Options {
	out := *o
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = 1024
	}
	if out.WriteBufferSize <= 0 {
		out.WriteBufferSize = 1024
	}
	if out.PongTimeout <= 0 {
		out.PongTimeout = 60 * time.Second
	}
	if out.PingInterval <= 0 || out.PingInterval >= out.PongTimeout {
		out.PingInterval = out.PongTimeout * 9 / 10
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 10 * time.Second
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = 512
	}
	return &out
}

type Handler struct {
	hub      *Hub
	snapshot SnapshotFunc
	upgrader websocket.Upgrader
	options  *Options
	logger   *logger.Logger
}

func NewHandler(hub *Hub, snapshot SnapshotFunc, options Options, log *logger.Logger) *Handler {
	opts := options.withDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		hub:      hub,
		snapshot: snapshot,
		options:  opts,
		logger:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    opts.ReadBufferSize,
			WriteBufferSize:   opts.WriteBufferSize,
			HandshakeTimeout:  opts.HandshakeTimeout,
			EnableCompression: opts.EnableCompression,
			CheckOrigin:       originChecker(opts.AllowedOrigins),
		},
	}
}

// StreamBookingPayments upgrades the request, sends the latest payment for the booking
// and then every payment.resolved event for it until the client goes away.
func (h *Handler) StreamBookingPayments(c *gin.Context) {
	rideID, err := strconv.ParseInt(c.Param("bookingId"), 10, 64)
	if err != nil || rideID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": gin.H{"code": "BAD_REQUEST", "message": "Invalid booking ID."}})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithContext(c.Request.Context()).WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := newClient(h.hub, conn, rideID, h.options)
	if !h.hub.add(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()

	// Registered before the snapshot is read, so a resolution in between is not lost.
	ctx := context.WithoutCancel(c.Request.Context())
	state, err := h.snapshot(ctx, rideID)
	if err != nil {
		h.logger.WithContext(ctx).WithRideID(rideID).WithError(err).Error("Failed to load stream snapshot")
		conn.Close()
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		conn.Close()
		return
	}
	if err := h.hub.Send(ctx, client, newMessage(MessageTypeSnapshot, rideID, data)); err != nil {
		conn.Close()
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			set[origin] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}
