package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newBufferedLogger(t *testing.T, format string) (*Logger, *bytes.Buffer) {
	t.Helper()
	log, err := NewLogger(&Config{Level: DebugLevel, Format: format, AppName: "goride-payments", Version: "test"})
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	return log, buf
}

func TestJSONFormatterFields(t *testing.T) {
	log, buf := newBufferedLogger(t, "json")

	ctx := ContextWithRequestID(context.Background(), "req-7")
	log.WithContext(ctx).WithPaymentID("p-1").WithError(errors.New("boom")).Error("Charge failed")

	line := buf.String()
	assert.Equal(t, "error", gjson.Get(line, "level").String())
	assert.Equal(t, "Charge failed", gjson.Get(line, "message").String())
	assert.Equal(t, "goride-payments", gjson.Get(line, "app").String())
	assert.Equal(t, "req-7", gjson.Get(line, "request_id").String())
	assert.Equal(t, "p-1", gjson.Get(line, "payment_id").String())
	assert.Equal(t, "boom", gjson.Get(line, "error").String())
}

func TestFormattersScrubSensitiveFields(t *testing.T) {
	log, buf := newBufferedLogger(t, "json")
	log.WithFields(map[string]interface{}{
		"phone":           "254712345678",
		"consumer_secret": "s3cr3t",
		"ride_id":         int64(4),
	}).Info("STK push sent")

	line := buf.String()
	assert.Equal(t, "*********678", gjson.Get(line, "phone").String())
	assert.Equal(t, redacted, gjson.Get(line, "consumer_secret").String())
	assert.Equal(t, int64(4), gjson.Get(line, "ride_id").Int())
	assert.NotContains(t, line, "s3cr3t")

	text, textBuf := newBufferedLogger(t, "text")
	text.WithField("PassKey", "abc").WithField("to", "+254712345678").Warn("Receipt queued")
	out := textBuf.String()
	assert.Contains(t, out, "[WARNING]")
	assert.Contains(t, out, "PassKey="+redacted)
	assert.Contains(t, out, "to=**********678")
	assert.NotContains(t, out, "abc")
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*********678", MaskPhone("254712345678"))
	assert.Equal(t, "*********678", MaskPhone(MaskPhone("254712345678")))
	assert.Equal(t, "***", MaskPhone("123"))
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	log, buf := newBufferedLogger(t, "json")
	child := log.WithField("component", "hub")

	log.Info("parent")
	assert.False(t, gjson.Get(buf.String(), "component").Exists())

	buf.Reset()
	child.Info("child")
	assert.Equal(t, "hub", gjson.Get(buf.String(), "component").String())
}

func TestLogAPIRequestLevels(t *testing.T) {
	log, buf := newBufferedLogger(t, "json")

	log.LogAPIRequest("POST", "/api/v1/payments/charge", 200, 15*time.Millisecond, "req-1")
	assert.Equal(t, "info", gjson.Get(buf.String(), "level").String())
	assert.Equal(t, int64(15), gjson.Get(buf.String(), "duration_ms").Int())

	buf.Reset()
	log.LogAPIRequest("POST", "/api/v1/payments/callback", 500, time.Millisecond, "")
	assert.Equal(t, "error", gjson.Get(buf.String(), "level").String())
	assert.False(t, gjson.Get(buf.String(), "request_id").Exists())
}

func TestLogCallbackEventUnresolvableWarns(t *testing.T) {
	log, buf := newBufferedLogger(t, "json")

	log.LogCallbackEvent("unresolvable", "ws_9", "", 0)
	assert.Equal(t, "warning", gjson.Get(buf.String(), "level").String())
	assert.Equal(t, "callback_event", gjson.Get(buf.String(), "type").String())
}
