//go:build !integration

package webhook

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"saas-billing-backend/internal/infra/logging"
)

func TestMiddleware(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("Chain should apply middlewares outermost first", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}), mw("outer"), mw("inner"))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		want := []string{"outer", "inner", "handler"}
		for i := range want {
			if i >= len(order) || order[i] != want[i] {
				t.Fatalf("expected order %v, got %v", want, order)
			}
		}
	})

	t.Run("TraceID should stamp a trace id on the request context", func(t *testing.T) {
		var buf bytes.Buffer
		bufLogger := zerolog.New(&buf)
		h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logging.With(r.Context(), &bufLogger).Info().Msg("probe")
		}), TraceID())

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !strings.Contains(buf.String(), `"trace_id"`) {
			t.Errorf("expected trace_id field in log output, got %s", buf.String())
		}
	})

	t.Run("Recover should convert panics into 500s", func(t *testing.T) {
		h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}), Recover(&logger))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500 after panic, got %d", rec.Code)
		}
	})

	t.Run("Timeout should cancel the request context", func(t *testing.T) {
		var expired bool
		h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
			expired = true
		}), Timeout(10*time.Millisecond))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !expired {
			t.Error("expected the handler context to expire")
		}
	})
}
