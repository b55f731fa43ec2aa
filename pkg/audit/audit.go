// Package audit records the security-relevant actions the gateway takes:
// sign-ins, token refreshes, replay detections, revocations. Events are
// emitted from domain logic and fanned out to a publisher; the domain never
// blocks on delivery.
package audit

import (
	"context"
	"time"
)

// Action names what happened.
type Action string

const (
	ActionLoginSucceeded  Action = "login_succeeded"
	ActionLoginFailed     Action = "login_failed"
	ActionUserCreated     Action = "user_created"
	ActionTokenRefreshed  Action = "token_refreshed"
	ActionRefreshRejected Action = "refresh_rejected"
	ActionSessionRevoked  Action = "session_revoked"
	ActionSessionsRevoked Action = "sessions_revoked"
)

// Event captures one audited action. Keep it transport-agnostic so sinks
// can fan out.
type Event struct {
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Publisher delivers audit events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Discard drops every event. Used when auditing is disabled.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
