package auth

import (
	"net/http"
	"time"
)

// RefreshCookieName is the cookie carrying the refresh token. It is
// HttpOnly so client-side script never sees the value.
const RefreshCookieName = "jwt"

func RefreshCookie(value string, expires time.Time, production bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
	}
	if production {
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

// ClearRefreshCookie is the whole of logout on the server side: the
// refresh token value itself stays valid until its natural expiry.
func ClearRefreshCookie(production bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
	}
	if production {
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}
