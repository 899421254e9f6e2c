package models

import "time"

// IssuedCredential is the issuer-side record of a finalized credential. The
// full credential (all claims revealed) is kept so holders can fetch it.
type IssuedCredential struct {
	Credential Credential `json:"credential"`
	IssuedAt   time.Time  `json:"issuedAt"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
}

// Revoked reports whether the issuer has revoked the credential.
func (c IssuedCredential) Revoked() bool {
	return c.RevokedAt != nil
}
