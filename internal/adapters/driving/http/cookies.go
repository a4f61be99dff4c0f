package http

import (
	"net/http"
	"time"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// authCookie builds an auth cookie. Both set and clear carry the same flags
// so browsers match and overwrite the original.
func authCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func setAuthCookies(w http.ResponseWriter, pair *domain.TokenPair) {
	http.SetCookie(w, authCookie(accessTokenCookie, pair.AccessToken))
	http.SetCookie(w, authCookie(refreshTokenCookie, pair.RefreshToken))
}

func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		c := authCookie(name, "")
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
