package core

import (
	"context"
	"os"
	"os/user"
)

type contextKey string

const ctxKeyActor contextKey = "audit_actor"

// Actor is the user and host recorded on system log entries.
type Actor struct {
	User string
	Host string
}

// DefaultActor returns the OS user and hostname, with overrides applied
// when non-empty.
func DefaultActor(userOverride, hostOverride string) Actor {
	a := Actor{User: userOverride, Host: hostOverride}
	if a.User == "" {
		if u, err := user.Current(); err == nil {
			a.User = u.Username
		} else {
			a.User = os.Getenv("USER")
		}
	}
	if a.Host == "" {
		if h, err := os.Hostname(); err == nil {
			a.Host = h
		}
	}
	return a
}

// WithActor attaches the acting user and host to ctx for audit logging.
// Empty fields fall back to the service default.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorFromContext returns the actor stored by WithActor, filling blank
// fields from fallback.
func ActorFromContext(ctx context.Context, fallback Actor) Actor {
	a, ok := ctx.Value(ctxKeyActor).(Actor)
	if !ok {
		return fallback
	}
	if a.User == "" {
		a.User = fallback.User
	}
	if a.Host == "" {
		a.Host = fallback.Host
	}
	return a
}
