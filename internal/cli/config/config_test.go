package config

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetConfig(ctx))
	assert.NotNil(t, GetLogger(ctx), "falls back to a discard logger")

	cfg := &Config{Mode: "local"}
	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	ctx = WithLogger(WithConfig(ctx, cfg), logger)
	assert.Same(t, cfg, GetConfig(ctx))
	assert.Same(t, logger, GetLogger(ctx))
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer

	NewLogger(&buf, false).Info("hidden")
	assert.Empty(t, buf.String())

	NewLogger(&buf, true).Debug("shown", "table", "customer.csv")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "table=customer.csv")
}
