package kafka

import (
	"context"
	"testing"

	"github.com/ABNmmd/PFE-FSA/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkJob struct {
	ReportID string   `json:"report_id"`
	Sources  []string `json:"sources"`
}

func TestDecodeJSON(t *testing.T) {
	job, err := DecodeJSON[checkJob]([]byte(`{"report_id":"r1","sources":["web"]}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", job.ReportID)
	assert.Equal(t, []string{"web"}, job.Sources)

	_, err = DecodeJSON[checkJob]([]byte(`{`))
	assert.Error(t, err)
}

func TestContextWithHeaders(t *testing.T) {
	ctx := contextWithHeaders(context.Background(), []kafka.Header{
		{Key: "other", Value: []byte("x")},
		{Key: requestIDHeader, Value: []byte("req-9")},
	})
	assert.Equal(t, "req-9", logger.RequestID(ctx))

	assert.Equal(t, "", logger.RequestID(contextWithHeaders(context.Background(), nil)))
}
