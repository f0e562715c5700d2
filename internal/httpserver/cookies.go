package httpserver

import (
	"net/http"
	"time"

	authmw "github.com/Skotchmaster/issue_logger/pkg/middleware/auth"
)

// Cookies builds the session cookies. Secure is set in production only so
// the cookies still work over plain http during development.
type Cookies struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (ck Cookies) create(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   ck.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (ck Cookies) Access(value string) *http.Cookie {
	return ck.create(authmw.AccessCookie, value, ck.AccessTTL)
}

func (ck Cookies) Refresh(value string) *http.Cookie {
	return ck.create(authmw.RefreshCookie, value, ck.RefreshTTL)
}

func (ck Cookies) Delete(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   ck.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
