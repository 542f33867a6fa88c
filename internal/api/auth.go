package api

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/AaronLay10/StrokeForge/internal/config"
)

// Role is an authorization level. Each role may do everything the roles below
// it may do.
type Role string

const (
	// RoleViewer reads scripts, rendered output and events.
	RoleViewer Role = "viewer"
	// RoleEditor also edits scripts and their pipelines.
	RoleEditor Role = "editor"
	// RoleAdmin also deletes scripts.
	RoleAdmin Role = "admin"
)

var roleRank = map[Role]int{RoleViewer: 1, RoleEditor: 2, RoleAdmin: 3}

// authConfig holds the accounts loaded from the environment, strongest first.
type authConfig struct {
	accounts []account
}

type account struct {
	role Role
	config.Account
}

var auth *authConfig

// InitAuth loads STROKEFORGE_{ADMIN,EDITOR,VIEWER}_{USER,PASS}, each honouring
// the *_FILE convention. Without an admin account, authentication is disabled.
func InitAuth() {
	roles := []Role{RoleAdmin, RoleEditor, RoleViewer}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}

	found, err := config.LoadAccounts("STROKEFORGE", names...)
	if err != nil {
		log.Fatalf("failed to load API credentials: %v", err)
	}

	auth = nil
	if _, ok := found[string(RoleAdmin)]; !ok {
		if len(found) > 0 {
			log.Printf("auth: accounts configured without an admin account, authentication disabled")
		}
		return
	}

	cfg := &authConfig{}
	for _, r := range roles {
		if a, ok := found[string(r)]; ok {
			cfg.accounts = append(cfg.accounts, account{role: r, Account: a})
		}
	}
	auth = cfg
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil
}

// authenticate returns the role of the request's basic-auth credentials, or ""
// when they match no account.
func authenticate(r *http.Request) Role {
	if auth == nil {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	// check every account; the first match is the strongest role
	var role Role
	for _, a := range auth.accounts {
		if secureCompare(user, a.User) && secureCompare(pass, a.Pass) && role == "" {
			role = a.role
		}
	}
	return role
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAuth returns 401 Unauthorized with WWW-Authenticate header.
func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="StrokeForge"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires at least the given role.
func RequireRole(handler http.HandlerFunc, min Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}
		if roleRank[role] < roleRank[min] {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		handler(w, r)
	}
}

// RequireViewer admits any configured account.
func RequireViewer(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleViewer)
}

// RequireEditor admits editors and admins.
func RequireEditor(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleEditor)
}

// RequireAdmin wraps a handler requiring admin role only.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin)
}
