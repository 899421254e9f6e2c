package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal or regulatory significance:
	// issuance and revocation of credentials.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers failed verifications and tampering signals.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine, high-volume events that may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Action names a credential lifecycle event.
type Action string

const (
	ActionCredentialIssued             Action = "credential_issued"
	ActionCredentialRevoked            Action = "credential_revoked"
	ActionCredentialDisclosed          Action = "credential_disclosed"
	ActionCredentialVerified           Action = "credential_verified"
	ActionCredentialVerificationFailed Action = "credential_verification_failed"
	ActionPresentationVerified         Action = "presentation_verified"
)

// Category returns the routing category of an action.
func (a Action) Category() EventCategory {
	switch a {
	case ActionCredentialIssued, ActionCredentialRevoked:
		return CategoryCompliance
	case ActionCredentialVerificationFailed:
		return CategorySecurity
	default:
		return CategoryOperations
	}
}

// Event is emitted from services to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID           string        `json:"id"`
	Category     EventCategory `json:"category"`
	Action       Action        `json:"action"`
	Timestamp    time.Time     `json:"timestamp"`
	CredentialID string        `json:"credential_id,omitempty"`
	Issuer       string        `json:"issuer,omitempty"`
	Outcome      string        `json:"outcome,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	// Client is a coarse "browser/os" summary of the caller's User-Agent.
	Client string `json:"client,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
