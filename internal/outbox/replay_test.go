package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReplayerBackoff(t *testing.T) {
	r := NewReplayer(nil, 0, 0, nil)
	assert.Equal(t, 5, r.maxRetries)
	assert.Equal(t, time.Minute, r.backoffDelay(1))
	assert.Equal(t, 2*time.Minute, r.backoffDelay(2))
	assert.Equal(t, 16*time.Minute, r.backoffDelay(5))
	assert.Equal(t, time.Hour, r.backoffDelay(7))
	assert.Equal(t, time.Hour, r.backoffDelay(64))
}
