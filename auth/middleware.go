package auth

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/sentimentd/observe"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code"`
}

// Require returns middleware that admits only authenticated requests and
// attaches the caller's Identity to the request context. A nil
// authenticator admits everything.
func Require(a Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		if a == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var (
				id  *Identity
				err = ErrMissingCredentials
			)
			if a.Supports(r) {
				id, err = a.Authenticate(ctx, r)
			}

			switch {
			case err == nil:
				logger.Debug(ctx, "request authenticated",
					observe.F("principal", id.Principal),
					observe.F("method", string(id.Method)),
				)
				next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
			case IsRejection(err):
				logger.Warn(ctx, "request rejected", observe.F("path", r.URL.Path), observe.Err(err))
				w.Header().Set("WWW-Authenticate", `Bearer realm="sentimentd"`)
				writeError(w, http.StatusUnauthorized, errorBody{
					Error:  "Unauthorized",
					Detail: err.Error(),
					Code:   "UNAUTHORIZED",
				})
			default:
				logger.Error(ctx, "authentication failed", observe.F("path", r.URL.Path), observe.Err(err))
				writeError(w, http.StatusServiceUnavailable, errorBody{
					Error: "Authentication unavailable",
					Code:  "AUTH_UNAVAILABLE",
				})
			}
		})
	}
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
