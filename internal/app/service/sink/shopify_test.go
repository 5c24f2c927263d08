package sink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	cfgpkg "github.com/tradeup/creditengine/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string, maxRetries int) *ShopifyClient {
	c := NewShopifyClient(&cfgpkg.Config{
		Sink: cfgpkg.SinkConfig{BaseURL: baseURL, MaxRetries: maxRetries, TimeoutSeconds: 2},
	}, zap.NewNop().Sugar())
	c.backoffBase = time.Millisecond
	return c
}

func TestPush_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"credit_id":"sc_123"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	res, err := c.Push(context.Background(), &PushRequest{MemberID: "m1", AmountCents: 500, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "sc_123", res.CreditID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPush_DefinitiveRejectionNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":"invalid customer"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	_, err := c.Push(context.Background(), &PushRequest{MemberID: "m1", AmountCents: 500, IdempotencyKey: "k1"})
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPush_ExhaustedRetriesReturnUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2)
	_, err := c.Push(context.Background(), &PushRequest{MemberID: "m1", AmountCents: 500, IdempotencyKey: "k1"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestPush_UnconfiguredSinkIsUnavailable(t *testing.T) {
	c := newTestClient("", 0)
	_, err := c.Push(context.Background(), &PushRequest{MemberID: "m1"})
	require.ErrorIs(t, err, ErrUnavailable)
}
