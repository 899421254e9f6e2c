package models

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/multiformats/go-multibase"
)

// CredentialIDPrefix namespaces identifiers derived from a root digest.
const CredentialIDPrefix = "cred:"

// DefaultCredentialType is always the first entry of Credential.Type.
const DefaultCredentialType = "VerifiableCredential"

// Claim is the subject of an issuance: who it is about and what is asserted.
type Claim struct {
	SubjectID  string
	Properties map[string]any
}

// DelegationRef declares the delegation node the issuer attests under.
// RootID and Delegators are optional assertions checked against the ledger.
type DelegationRef struct {
	ID         string   `json:"id"`
	RootID     string   `json:"rootId,omitempty"`
	Delegators []string `json:"delegators,omitempty"`
}

// Credential is the wire document presented to verifiers.
type Credential struct {
	ID                string         `json:"id"`
	Type              []string       `json:"type"`
	Issuer            string         `json:"issuer"`
	CredentialSubject map[string]any `json:"credentialSubject"`
	SchemaRef         string         `json:"schemaRef"`
	Delegation        *DelegationRef `json:"delegation,omitempty"`
	Legitimations     []string       `json:"legitimations,omitempty"`
	Proof             *ProofDocument `json:"proof,omitempty"`
}

// SubjectID returns the subject identifier, or "" when absent.
func (c Credential) SubjectID() string {
	id, _ := c.CredentialSubject[SubjectIDKey].(string)
	return id
}

// ClaimKeys returns the revealed claim keys in sorted order.
func (c Credential) ClaimKeys() []string {
	keys := make([]string, 0, len(c.CredentialSubject))
	for k := range c.CredentialSubject {
		if k == SubjectIDKey {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// DelegationID returns the declared delegation id, or "".
func (c Credential) DelegationID() string {
	if c.Delegation == nil {
		return ""
	}
	return c.Delegation.ID
}

// Clone copies the document so callers can drop members without touching the
// original. Claim values are shared; they are never mutated in place.
func (c Credential) Clone() Credential {
	out := c
	out.Type = slices.Clone(c.Type)
	out.CredentialSubject = maps.Clone(c.CredentialSubject)
	out.Legitimations = slices.Clone(c.Legitimations)
	if c.Delegation != nil {
		d := *c.Delegation
		d.Delegators = slices.Clone(c.Delegation.Delegators)
		out.Delegation = &d
	}
	if c.Proof != nil {
		p := c.Proof.Clone()
		out.Proof = &p
	}
	return out
}

// CredentialIDFromRoot derives the public identifier of a credential.
func CredentialIDFromRoot(root Digest) string {
	encoded, err := multibase.Encode(multibase.Base58BTC, root[:])
	if err != nil {
		// Base58BTC is always a known encoding.
		panic(fmt.Sprintf("multibase encode: %v", err))
	}
	return CredentialIDPrefix + encoded
}

// RootDigestFromID reverses CredentialIDFromRoot.
func RootDigestFromID(id string) (Digest, error) {
	var root Digest
	encoded, ok := strings.CutPrefix(id, CredentialIDPrefix)
	if !ok {
		return root, fmt.Errorf("credential id %q lacks %q prefix", id, CredentialIDPrefix)
	}
	_, raw, err := multibase.Decode(encoded)
	if err != nil {
		return root, fmt.Errorf("decode credential id: %w", err)
	}
	if len(raw) != DigestSize {
		return root, fmt.Errorf("credential id encodes %d bytes, want %d", len(raw), DigestSize)
	}
	copy(root[:], raw)
	return root, nil
}
