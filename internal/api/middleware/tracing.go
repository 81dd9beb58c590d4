package middleware

import (
	"net/http"

	"github.com/cloo-solutions/signmaker/internal/telemetry"
	"github.com/getsentry/sentry-go"
)

// Tracing opens a Sentry transaction per request and reports panics before
// re-raising them. The transaction is tagged with the request ID and, once
// the chat handler resolved it, the user ID.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, tx := telemetry.StartRequest(r)
		defer tx.End()
		tx.Tag("request_id", GetRequestID(ctx))

		defer func() {
			if v := recover(); v != nil {
				tx.SetHTTPStatus(http.StatusInternalServerError)
				if hub := sentry.GetHubFromContext(ctx); hub != nil {
					hub.RecoverWithContext(ctx, v)
				}
				panic(v)
			}
		}()

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		tx.SetHTTPStatus(rec.statusOrOK())
		tx.Tag("user_id", GetUserID(ctx))
	})
}
