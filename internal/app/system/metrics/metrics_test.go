package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/scratchstarter/internal/app/system/metrics"
	"github.com/go-chi/chi/v5"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrument_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Instrument)
	r.Get("/blog/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, slug := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/blog/"+slug, nil))
	}

	if n := promtest.CollectAndCount(metrics.RequestDuration, "scratch_http_request_duration_seconds"); n != 1 {
		t.Errorf("series = %d, want 1 (one route pattern)", n)
	}

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `route="/blog/{slug}"`) || !strings.Contains(body, `code="4xx"`) {
		t.Errorf("metrics output missing labels:\n%s", body)
	}
}

func TestCounters(t *testing.T) {
	before := promtest.ToFloat64(metrics.SignIns.WithLabelValues("email", "success"))
	metrics.SignIns.WithLabelValues("email", "success").Inc()
	if got := promtest.ToFloat64(metrics.SignIns.WithLabelValues("email", "success")); got != before+1 {
		t.Errorf("SignIns = %v, want %v", got, before+1)
	}
}
