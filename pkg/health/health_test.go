package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("postgres", PingCheck(pingFunc(func(context.Context) error { return nil }), true))
	c.Register("redis", PingCheck(pingFunc(func(context.Context) error { return errors.New("refused") }), false))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUp, report.Components["postgres"].Status)
	assert.Equal(t, "refused", report.Components["redis"].Message)

	c.Register("kafka", PingCheck(pingFunc(func(context.Context) error { return errors.New("no brokers") }), true))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestPingCheckNil(t *testing.T) {
	h := PingCheck(nil, true)(context.Background())
	assert.Equal(t, StatusDegraded, h.Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("embedding", Static(StatusUp, "tfidf"))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.Register("postgres", Static(StatusDown, "gone"))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyHandlerDegradedStillServes(t *testing.T) {
	c := NewChecker()
	c.Register("redis", Static(StatusDegraded, "cache disabled"))
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestRunBoundsSlowChecks(t *testing.T) {
	c := NewChecker()
	c.timeout = 10 * time.Millisecond
	c.Register("postgres", PingCheck(pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), true))
	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Contains(t, report.Components["postgres"].Message, "deadline")
}
