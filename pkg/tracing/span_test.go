package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "compare", "report-1")
	_, chunk := StartChildSpan(ctx, "chunk")
	chunk.SetAttr("chunks", 12)
	chunk.End()
	root.End()

	require.Len(t, root.Children, 1)
	assert.Equal(t, "report-1", chunk.TraceID)
	assert.Same(t, chunk, root.Find("chunk"))
	assert.Nil(t, root.Find("missing"))

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	assert.Contains(t, buf.String(), "span=chunk")
	assert.Contains(t, buf.String(), "chunks=12")
}

func TestChildWithoutParentStartsTrace(t *testing.T) {
	_, s := StartChildSpan(context.Background(), "orphan")
	assert.NotEmpty(t, s.TraceID)
}
