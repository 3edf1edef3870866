package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RunIDFromContext(ctx))

	ctx = WithRunID(ctx, "0c75a1f2")
	assert.Equal(t, "0c75a1f2", RunIDFromContext(ctx))
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-42")
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))
}

func TestContextFields(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want map[string]string
	}{
		{
			name: "empty context",
			ctx:  context.Background(),
			want: map[string]string{},
		},
		{
			name: "run id only",
			ctx:  WithRunID(context.Background(), "run-1"),
			want: map[string]string{"run.id": "run-1"},
		},
		{
			name: "run and request ids",
			ctx:  WithRequestID(WithRunID(context.Background(), "run-1"), "req-1"),
			want: map[string]string{"run.id": "run-1", "request.id": "req-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := ContextFields(tt.ctx)
			require.Len(t, fields, len(tt.want))
			for _, f := range fields {
				assert.Equal(t, tt.want[f.Key], f.String)
			}
		})
	}
}

func TestLoggerFromContext(t *testing.T) {
	// Without a stored logger a usable nop comes back.
	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)

	logger := NewTestLogger()
	ctx := WithLogger(context.Background(), logger.Logger)
	assert.Same(t, logger.Logger, FromContext(ctx))
}
