package observability

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/Roohan-gm/shopblizz-backend/internal/platform/requestctx"
)

// TraceMiddleware starts a server span per request through otelhttp and exposes the trace
// identifiers on the request context for logging and error envelopes.
func TraceMiddleware(service, projectID string) func(http.Handler) http.Handler {
	instrument := otelhttp.NewMiddleware(service,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("%s %s", SanitizeMethod(r.Method), SanitizeRoute(r.URL.Path))
		}),
	)
	return func(next http.Handler) http.Handler {
		return instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			spanCtx := trace.SpanContextFromContext(r.Context())
			if spanCtx.IsValid() {
				ctx := requestctx.WithTrace(r.Context(), requestctx.TraceInfo{
					TraceID:   spanCtx.TraceID().String(),
					SpanID:    spanCtx.SpanID().String(),
					Sampled:   spanCtx.IsSampled(),
					ProjectID: projectID,
				})
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		}))
	}
}
