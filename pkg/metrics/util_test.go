package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeApproximateRequestSize(t *testing.T) {
	r := httptest.NewRequest("POST", "http://example.com/api/v1/members", strings.NewReader("{}"))
	r.Header.Set("X-Tenant-ID", "t1")

	got := computeApproximateRequestSize(r)

	// path + method + proto + headers + host + body length
	assert.Greater(t, got, len("/api/v1/members")+len("POST"))
}

func TestMillisecondsSince(t *testing.T) {
	start := time.Now().Add(-250 * time.Millisecond)
	got := MillisecondsSince(start)
	assert.GreaterOrEqual(t, got, 250.0)
	assert.Less(t, got, 5000.0)
}
