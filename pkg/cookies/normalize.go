package cookies

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrNoURL is returned when a cookie has no URL, no domain to derive one
// from, and no caller-supplied fallback.
var ErrNoURL = errors.New("no URL available for cookie")

// EnforceSecurityInvariants rewrites c so it satisfies browser cookie
// security rules:
//
//   - a resolved SameSite of no_restriction forces Secure
//   - a "__Host-" name forces Secure, Path "/", and strips the domain
//     attribute
//   - a "__Secure-" name forces Secure
//   - an existing http URL is upgraded to https whenever Secure was forced
//
// It returns true when the Secure flag was forced on.
func EnforceSecurityInvariants(c *Cookie) bool {
	c.SameSite = NormalizeSameSite(string(c.SameSite))

	forced := false
	force := func() {
		if !c.Secure {
			c.Secure = true
			forced = true
		}
	}

	if c.SameSite == SameSiteNoRestriction {
		force()
	}

	switch {
	case strings.HasPrefix(c.Name, hostPrefix):
		force()
		c.Path = "/"
		// __Host- cookies are always host-only: no domain attribute.
		c.Domain = strings.TrimPrefix(c.Domain, ".")
	case strings.HasPrefix(c.Name, securePrefix):
		force()
	}

	if forced && strings.HasPrefix(c.URL, "http://") {
		c.URL = "https://" + strings.TrimPrefix(c.URL, "http://")
	}

	return forced
}

// DomainAttribute decides whether the cookie should be set with an explicit
// domain attribute. Only leading-dot domain cookies emit one; host-only
// cookies and "__Host-" names never do.
func DomainAttribute(c *Cookie) (string, bool) {
	if strings.HasPrefix(c.Name, hostPrefix) {
		return "", false
	}
	if strings.HasPrefix(c.Domain, ".") {
		return c.Domain, true
	}
	return "", false
}

// BuildURL synthesizes the origin URL a cookie should be set against when
// none is given: scheme chosen from the (possibly forced) Secure flag, host
// from the domain with any leading dot stripped, plus the cookie path. When
// the domain is also absent it falls back to the caller-supplied context
// URL, and fails with ErrNoURL when neither exists.
func BuildURL(c *Cookie, fallbackURL string) (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}

	if c.Domain != "" {
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		return scheme + "://" + strings.TrimPrefix(c.Domain, ".") + path, nil
	}

	if fallbackURL != "" {
		return fallbackURL, nil
	}
	return "", ErrNoURL
}

// Normalize runs the full pipeline on a copy of c: same-site resolution,
// security invariants, and URL synthesis. The URL is derived from the
// domain as supplied, so a "__Host-" cookie still resolves its origin even
// though its domain attribute is suppressed.
func Normalize(c Cookie, fallbackURL string) (Cookie, error) {
	domain := c.Domain
	EnforceSecurityInvariants(&c)

	if c.URL == "" {
		derived := c
		derived.Domain = domain
		u, err := BuildURL(&derived, fallbackURL)
		if err != nil {
			return c, err
		}
		c.URL = u
	}
	return c, nil
}

// ValidDomain rejects domain attributes that would scope a cookie to a
// public suffix (".com", ".co.uk"), the same rule net/http/cookiejar
// applies when storing cookies.
func ValidDomain(domain string) error {
	d := strings.TrimPrefix(strings.ToLower(domain), ".")
	if d == "" {
		return fmt.Errorf("empty cookie domain")
	}

	if ps, icann := publicsuffix.PublicSuffix(d); icann && ps == d {
		return fmt.Errorf("cannot scope cookie to public suffix %q", d)
	}
	return nil
}
