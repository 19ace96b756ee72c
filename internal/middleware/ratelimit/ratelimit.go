package rateLimit

import (
	"net/http"
	"time"

	httprate "github.com/go-chi/httprate"
)

// Rule allows Limit requests per Window from one client IP. A zero Limit
// disables the rule.
type Rule struct {
	Limit  int
	Window time.Duration
}

type Limits struct {
	Signup Rule
	Verify Rule
	Resend Rule
	Login  Rule
}

func Default() Limits {
	return Limits{
		Signup: Rule{Limit: 5, Window: time.Hour},
		Verify: Rule{Limit: 10, Window: 10 * time.Minute},
		Resend: Rule{Limit: 3, Window: time.Hour},
		Login:  Rule{Limit: 10, Window: 5 * time.Minute},
	}
}

func Signup(l Limits) func(http.Handler) http.Handler {
	return limitByIP(l.Signup)
}

func Verify(l Limits) func(http.Handler) http.Handler {
	return limitByIP(l.Verify)
}

func ResendVerificationEmail(l Limits) func(http.Handler) http.Handler {
	return limitByIP(l.Resend)
}

func Login(l Limits) func(http.Handler) http.Handler {
	return limitByIP(l.Login)
}

func limitByIP(rule Rule) func(http.Handler) http.Handler {
	if rule.Limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.LimitByIP(rule.Limit, rule.Window)
}
