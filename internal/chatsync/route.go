package chatsync

import "strings"

// View is a client screen.
type View int

const (
	ViewLanding View = iota
	ViewLogin
	ViewSignup
	ViewDashboard
	ViewChat
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewSignup:
		return "signup"
	case ViewDashboard:
		return "dashboard"
	case ViewChat:
		return "chat"
	default:
		return "landing"
	}
}

// Route is a parsed navigation target. Ref is the slug or id for ViewChat.
type Route struct {
	View View
	Ref  string
}

// ParseRoute maps hash locations (#/, #/login, #/signup, #/dashboard,
// #/chat/<slug-or-id>) to views. Anything else is the landing page.
func ParseRoute(hash string) Route {
	path := strings.TrimPrefix(strings.TrimSpace(hash), "#")
	path = strings.Trim(path, "/")

	switch {
	case path == "login":
		return Route{View: ViewLogin}
	case path == "signup":
		return Route{View: ViewSignup}
	case path == "dashboard":
		return Route{View: ViewDashboard}
	case strings.HasPrefix(path, "chat/"):
		ref := strings.TrimPrefix(path, "chat/")
		if ref != "" && !strings.Contains(ref, "/") {
			return Route{View: ViewChat, Ref: ref}
		}
	}
	return Route{View: ViewLanding}
}
