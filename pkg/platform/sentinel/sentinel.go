package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and ledger adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record, node or transaction does not exist
// - ErrConflict: an attestation for the root already exists
// - ErrForbidden: the caller is not the attester of the record
// - ErrInvalidState: entity in wrong state for requested operation (already revoked)
// - ErrUnavailable: ledger or cache temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
