package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	cfgpkg "github.com/tradeup/creditengine/pkg/config"
	"github.com/tradeup/creditengine/pkg/logctx"

	"go.uber.org/zap"
)

// ErrRejected is a definitive rejection from the store-credit sink
// (e.g. unknown customer). Never retried.
var ErrRejected = errors.New("store credit sink rejected request")

// ErrUnavailable is a transient sink failure after retries exhausted.
// The ledger entry still stands; the entry is flagged for later
// reconciliation instead.
var ErrUnavailable = errors.New("store credit sink unavailable")

type PushRequest struct {
	TenantID          string `json:"tenant_id"`
	MemberID          string `json:"member_id"`
	ShopifyCustomerID string `json:"shopify_customer_id"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
	// IdempotencyKey is forwarded so the sink side can dedupe
	// at-least-once delivery.
	IdempotencyKey string `json:"idempotency_key"`
}

type PushResult struct {
	CreditID string `json:"credit_id"`
}

// Sink commits credit to the customer on the external side. The engine
// treats it as at-least-once; idempotency keys gate duplicates.
type Sink interface {
	Push(ctx context.Context, req *PushRequest) (*PushResult, error)
}

// ShopifyClient pushes store credit via Shopify's REST surface, with a
// per-attempt timeout and capped exponential backoff on transient
// failures. Definitive rejections are returned immediately.
type ShopifyClient struct {
	cfg  *cfgpkg.Config
	log  *zap.SugaredLogger
	http *http.Client

	// backoffBase is overridable in tests.
	backoffBase time.Duration
}

func NewShopifyClient(cfg *cfgpkg.Config, log *zap.SugaredLogger) *ShopifyClient {
	timeout := time.Duration(cfg.Sink.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ShopifyClient{
		cfg:         cfg,
		log:         log,
		http:        &http.Client{Timeout: timeout},
		backoffBase: 500 * time.Millisecond,
	}
}

func (c *ShopifyClient) Push(ctx context.Context, req *PushRequest) (*PushResult, error) {
	if c.cfg.Sink.BaseURL == "" {
		return nil, fmt.Errorf("%w: sink base_url not configured", ErrUnavailable)
	}

	maxAttempts := c.cfg.Sink.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase << (attempt - 1)
			if backoff > 8*time.Second {
				backoff = 8 * time.Second
			}
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
		}

		res, err := c.attempt(ctx, req)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrRejected) {
			// Definitive; retrying cannot help.
			return nil, err
		}
		lastErr = err
		logctx.FromCtx(ctx, c.log).Warnw("store credit push failed",
			"attempt", attempt+1, "member_id", req.MemberID, "idempotency_key", req.IdempotencyKey, "err", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *ShopifyClient) attempt(ctx context.Context, req *PushRequest) (*PushResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"customer_id":     req.ShopifyCustomerID,
		"amount":          fmt.Sprintf("%d.%02d", req.AmountCents/100, req.AmountCents%100),
		"currency_code":   req.Currency,
		"idempotency_key": req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Sink.BaseURL+"/store_credit_account_credits.json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", c.cfg.Sink.AccessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out struct {
			CreditID string `json:"credit_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode sink response: %w", err)
		}
		return &PushResult{CreditID: out.CreditID}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("sink returned %d", resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, string(msg))
	}
}
