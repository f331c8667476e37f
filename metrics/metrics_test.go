package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTransition(t *testing.T) {
	TransitionsTotal.Reset()

	RecordTransition("check_in")
	RecordTransition("check_in")
	RecordTransition("cancel")

	if got := testutil.ToFloat64(TransitionsTotal.WithLabelValues("check_in")); got != 2 {
		t.Errorf("expected check_in=2, got %f", got)
	}
	if got := testutil.ToFloat64(TransitionsTotal.WithLabelValues("cancel")); got != 1 {
		t.Errorf("expected cancel=1, got %f", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordRateLimited("cancel")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hotel_ratelimit_rejections_total") {
		t.Error("expected rate limit counter in exposition")
	}
}
