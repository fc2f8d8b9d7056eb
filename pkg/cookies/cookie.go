// Package cookies enforces browser cookie security invariants and speaks a
// tab-separated interchange format for bulk import and export.
//
// The invariants are the ones browsers apply when a cookie is set:
//
//   - SameSite=None ("no_restriction") requires Secure and a secure-scheme URL
//   - "__Host-" names require Secure, Path "/", and no domain attribute
//   - "__Secure-" names require Secure
//   - domain cookies carry a leading dot; host-only cookies omit it
//
// Cookie values are transient per-call data; nothing in this package
// persists them.
package cookies

import "strings"

// SameSite is the canonical same-site policy of a cookie.
type SameSite string

const (
	// SameSiteLax is the default policy for cookies that don't specify one.
	SameSiteLax SameSite = "lax"

	// SameSiteStrict restricts the cookie to same-site requests.
	SameSiteStrict SameSite = "strict"

	// SameSiteNoRestriction ("none" on the wire) allows cross-site sends
	// and requires Secure.
	SameSiteNoRestriction SameSite = "no_restriction"
)

// Name prefixes with attached security requirements.
const (
	hostPrefix   = "__Host-"
	securePrefix = "__Secure-"
)

// Cookie is a browser cookie in the extension wire shape.
type Cookie struct {
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Domain   string   `json:"domain,omitempty"`
	Path     string   `json:"path,omitempty"`
	Secure   bool     `json:"secure"`
	HTTPOnly bool     `json:"httpOnly"`
	SameSite SameSite `json:"sameSite,omitempty"`

	// ExpirationDate is a unix epoch in seconds; 0 means a session cookie.
	ExpirationDate float64 `json:"expirationDate,omitempty"`

	// URL is the origin the cookie is set against. Derived from Domain and
	// Path when the caller doesn't supply it.
	URL string `json:"url,omitempty"`
}

// NormalizeSameSite maps the wire forms browsers emit onto the canonical
// values. Missing or "unspecified" input resolves to lax, as do unknown
// inputs; "none" resolves to no_restriction.
func NormalizeSameSite(v string) SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return SameSiteStrict
	case "none", string(SameSiteNoRestriction):
		return SameSiteNoRestriction
	default:
		return SameSiteLax
	}
}

// HostOnly reports whether the cookie is scoped to one exact hostname
// rather than shared across subdomains.
func (c *Cookie) HostOnly() bool {
	return !strings.HasPrefix(c.Domain, ".")
}
