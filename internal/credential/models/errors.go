package models

import (
	dErrors "anchorcred/pkg/domain-errors"
)

// MalformedClaimError reports input that cannot be canonicalized or digested.
func MalformedClaimError(format string, args ...any) error {
	return dErrors.Newf(dErrors.CodeMalformedClaim, format, args...)
}

// DigestMismatchError reports a recomputed root that disagrees with the credential.
func DigestMismatchError(format string, args ...any) error {
	return dErrors.Newf(dErrors.CodeDigestMismatch, format, args...)
}

// MandatoryFieldMissingError reports a hidden or absent mandatory statement.
func MandatoryFieldMissingError(path Path) error {
	return dErrors.Newf(dErrors.CodeMandatoryFieldMissing, "mandatory statement %s is not revealed", path)
}

// UnknownPathError reports a reveal request for a claim the credential does not carry.
func UnknownPathError(key string) error {
	return dErrors.Newf(dErrors.CodeUnknownPath, "credential has no claim %q", key)
}

// IssuanceNotConfirmedError reports a missing or mismatching issuance transaction.
func IssuanceNotConfirmedError(format string, args ...any) error {
	return dErrors.Newf(dErrors.CodeIssuanceNotConfirmed, format, args...)
}

// RecordNotFoundError reports an absent attestation record.
func RecordNotFoundError(root Digest) error {
	return dErrors.Newf(dErrors.CodeRecordNotFound, "no attestation record for %s", root)
}

// TrustChainError reports a delegation or legitimation failure.
func TrustChainError(format string, args ...any) error {
	return dErrors.Newf(dErrors.CodeTrustChain, format, args...)
}

// AnchorMismatchError reports ledger data that contradicts the credential.
func AnchorMismatchError(format string, args ...any) error {
	return dErrors.Newf(dErrors.CodeAnchorMismatch, format, args...)
}

// IsTransient reports errors that depend on ledger state and may clear up
// once a block is finalized. Nothing in the core retries on its own.
func IsTransient(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeIssuanceNotConfirmed, dErrors.CodeRecordNotFound, dErrors.CodeTrustChain:
		return true
	default:
		return false
	}
}
