// Package guard decides whether a navigation renders or redirects. The
// functions are pure; the HTTP layer turns a Decision into a response.
package guard

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/picha-hub/picha_portal/internal/identity"
)

const (
	LoginPath         = "/login"
	RootPath          = "/"
	CreativeHomePath  = "/dashboard/creative"
	ClientHomePath    = "/dashboard/client"
	AdminHomePath     = "/admin"
	ProfilePath       = "/me"
	maxNextPathLength = 2048
)

// Kind is the outcome of a guard.
type Kind int

const (
	Render Kind = iota
	Loading
	RedirectLogin
	RedirectHome
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// Decision tells the caller what to do. Location is set for redirects.
type Decision struct {
	Kind     Kind
	Location string
}

// Auth gates on the session: loading until ready, then login or render.
// requested is carried to the login view so login can return there.
func Auth(ready bool, id *identity.Identity, requested string) Decision {
	if !ready {
		return Decision{Kind: Loading}
	}
	if id == nil {
		return Decision{Kind: RedirectLogin, Location: LoginLocation(requested)}
	}
	return Decision{Kind: Render}
}

// Role renders when id has one of the allowed roles and otherwise sends the
// visitor to their own home.
func Role(id *identity.Identity, allowed ...identity.Role) Decision {
	if id != nil {
		for _, r := range allowed {
			if id.Role == r {
				return Decision{Kind: Render}
			}
		}
	}
	return Decision{Kind: RedirectHome, Location: HomeFor(id)}
}

// Compose nests Auth around Role, so the role check only runs for a present
// identity.
func Compose(ready bool, id *identity.Identity, requested string, allowed ...identity.Role) Decision {
	if d := Auth(ready, id, requested); d.Kind != Render {
		return d
	}
	return Role(id, allowed...)
}

// HomeFor is the landing page for a role. A present identity never maps to
// RootPath, which itself redirects here.
func HomeFor(id *identity.Identity) string {
	if id == nil {
		return RootPath
	}
	switch id.Role {
	case identity.RoleCreative:
		return CreativeHomePath
	case identity.RoleClient:
		return ClientHomePath
	case identity.RoleAdmin:
		return AdminHomePath
	default:
		return ProfilePath
	}
}

// LoginLocation builds the login URL, keeping requested as next when safe.
func LoginLocation(requested string) string {
	if next := SanitizeNext(requested); next != "" {
		return LoginPath + "?next=" + url.QueryEscape(next)
	}
	return LoginPath
}

// SanitizeNext returns next if it is a same-origin relative path worth
// returning to, or "".
func SanitizeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || next == RootPath || len(next) > maxNextPathLength {
		return ""
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	if strings.ContainsRune(next, '\\') || strings.IndexFunc(next, unicode.IsControl) >= 0 {
		return ""
	}

	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || u.Scheme != "" {
		return ""
	}
	if strings.HasPrefix(u.Path, "//") || strings.ContainsRune(u.Path, '\\') {
		return ""
	}
	if u.Path == LoginPath || strings.HasPrefix(u.Path, LoginPath+"/") {
		return ""
	}
	return next
}
