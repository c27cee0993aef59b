// Package access decides, without any I/O, whether a page navigation passes
// or is redirected.  The HTTP wrapper lives in internal/middleware.
package access

import (
	"net/url"
	"strings"

	"github.com/iliyamo/estate-portal/internal/model"
)

// Class groups request paths by how the gate treats them.
type Class uint8

const (
	ClassExcluded Class = iota // static assets, favicon, /api/*, /healthz
	ClassPublic
	ClassAuth
	ClassProtected
)

// Action is the outcome of a decision.
type Action uint8

const (
	Pass Action = iota
	Redirect
)

// Request is everything the table looks at.
type Request struct {
	HasSession bool
	Path       string
	Role       model.Role
}

// Decision is either Pass or a Redirect to Location.
type Decision struct {
	Action   Action
	Location string
}

var authPaths = map[string]bool{
	"/login":           true,
	"/signup":          true,
	"/forgot-password": true,
	"/invite":          true,
}

var publicPaths = map[string]bool{
	"/":      true,
	"/about": true,
}

// areaRoots are the protected dashboard roots in the order they are matched.
var areaRoots = []string{"/superadmin", "/dashboard", "/household", "/admin"}

// Classify returns the class of path.  Everything that is not a page,
// static assets included, is excluded so the router answers it directly.
func Classify(path string) Class {
	p := clean(path)
	switch {
	case p == "/api" || strings.HasPrefix(p, "/api/"), p == "/healthz", p == "/favicon.ico", p == "/robots.txt":
		return ClassExcluded
	case authPaths[p]:
		return ClassAuth
	case publicPaths[p]:
		return ClassPublic
	case area(p) != "":
		return ClassProtected
	}
	return ClassExcluded
}

// Decide applies the access table.
func Decide(r Request) Decision {
	p := clean(r.Path)
	switch Classify(p) {
	case ClassExcluded, ClassPublic:
		return Decision{Action: Pass}
	case ClassAuth:
		if r.HasSession && r.Role.Known() {
			return Decision{Action: Redirect, Location: model.DashboardPath(r.Role)}
		}
		return Decision{Action: Pass}
	case ClassProtected:
		if !r.HasSession {
			return Decision{Action: Redirect, Location: "/login?next=" + url.QueryEscape(r.Path)}
		}
		if !r.Role.Known() {
			return Decision{Action: Redirect, Location: "/login"}
		}
		if allowed(r.Role, area(p)) {
			return Decision{Action: Pass}
		}
		return Decision{Action: Redirect, Location: model.DashboardPath(r.Role)}
	}
	return Decision{Action: Pass}
}

// allowed reports whether role may enter the protected area rooted at root.
func allowed(role model.Role, root string) bool {
	if root == model.DashboardPath(role) {
		return true
	}
	return role == model.RoleSuperAdmin && root == "/admin"
}

// area returns the protected root p lives under, or "".
func area(p string) string {
	for _, root := range areaRoots {
		if p == root || strings.HasPrefix(p, root+"/") {
			return root
		}
	}
	return ""
}

// clean strips the query and a trailing slash.
func clean(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
