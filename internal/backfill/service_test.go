package backfill

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownWithoutStart(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	begin := time.Now()
	assert.NoError(t, svc.Shutdown(ctx))
	assert.Less(t, time.Since(begin), 500*time.Millisecond)
	assert.NoError(t, ctx.Err(), "shutdown should not wait for the deadline")
}
