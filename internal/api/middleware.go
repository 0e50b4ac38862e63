package api

import (
	"context"
	"log/slog"
	"net/http"
)

type approverKey struct{}

// ApproverMiddleware resolves the approver identity from the X-Approver-Token
// header. The table is read on every request. With no tokens configured every
// request passes and the identity comes from the request body.
func ApproverMiddleware(table func() map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokens := table()
			if len(tokens) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			token := r.Header.Get("X-Approver-Token")
			if token == "" {
				slog.Warn("Missing approver token in request")
				writeJSON(w, http.StatusUnauthorized, Response{Success: false, Error: "missing approver token"})
				return
			}
			who, ok := tokens[token]
			if !ok {
				slog.Warn("Unknown approver token")
				writeJSON(w, http.StatusForbidden, Response{Success: false, Error: "unknown approver token"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), approverKey{}, who)))
		})
	}
}

// ApproverFromContext returns the identity established by ApproverMiddleware.
func ApproverFromContext(ctx context.Context) (string, bool) {
	who, ok := ctx.Value(approverKey{}).(string)
	return who, ok
}
