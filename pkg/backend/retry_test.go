package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"HTTP 503 Service Unavailable, over capacity", true},
		{"429 Too Many Requests", true},
		{"rate limit exceeded, please retry", true},
		{"connection reset by peer", true},
		{"connection refused", true},
		{"temporarily unavailable", true},
		{"command not found", false},
		{"invalid API key", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsTransient(c.msg), c.msg)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
}

func TestRetryPolicySleepCancelled(t *testing.T) {
	p := RetryPolicy{Base: time.Hour, Factor: 2, MaxRetries: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Sleep(ctx, 1)
	require.Error(t, err)
}
