package handler

import (
	"net/http"

	"github.com/fibernet/central-cliente-bfa-go/internal/session"

	"go.uber.org/zap"
)

// ProfileMiddleware resolves the browser profile from the signed session
// cookie and attaches its store to the request context. A missing or invalid
// cookie starts a fresh profile and issues a new cookie.
func ProfileMiddleware(manager *session.Manager, codec *session.CookieCodec, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var profileID string
			if c, err := r.Cookie(session.CookieName); err == nil {
				id, err := codec.Parse(c.Value)
				if err != nil {
					logger.Debug("session: discarding invalid cookie",
						zap.String("path", r.URL.Path),
						zap.Error(err),
					)
				} else {
					profileID = id
				}
			}

			if profileID == "" {
				profileID = session.NewProfileID()
				value, err := codec.Issue(profileID)
				if err != nil {
					logger.Error("session: failed to issue cookie", zap.Error(err))
					writeError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     session.CookieName,
					Value:    value,
					Path:     "/",
					MaxAge:   int(codec.TTL().Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := session.WithStore(r.Context(), manager.Profile(profileID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
