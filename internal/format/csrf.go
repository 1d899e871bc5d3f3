package format

import (
	"net/http"
	"net/url"
	"strings"
)

// CSRFCookieName как у Django.
const CSRFCookieName = "csrftoken"

// CSRFToken возвращает первый непустой токен: meta-тег, скрытое поле формы, cookie.
func CSRFToken(meta, formField, cookieHeader string) string {
	if t := strings.TrimSpace(meta); t != "" {
		return t
	}
	if t := strings.TrimSpace(formField); t != "" {
		return t
	}
	return CookieValue(cookieHeader, CSRFCookieName)
}

// CookieValue достаёт значение cookie из заголовка Cookie.
func CookieValue(cookieHeader, name string) string {
	if cookieHeader == "" {
		return ""
	}
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		// битые пары не должны прятать нужную cookie
		for _, part := range strings.Split(cookieHeader, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && k == name {
				return unescape(v)
			}
		}
		return ""
	}
	for _, c := range cookies {
		if c.Name == name {
			return unescape(c.Value)
		}
	}
	return ""
}

func unescape(v string) string {
	if u, err := url.QueryUnescape(v); err == nil {
		return u
	}
	return v
}
