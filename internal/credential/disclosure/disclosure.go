// Package disclosure derives reduced credentials for presentation. It runs on
// the holder side and never touches the ledger.
package disclosure

import (
	"slices"

	"anchorcred/internal/credential/digest"
	"anchorcred/internal/credential/models"
	pstrings "anchorcred/pkg/platform/strings"
)

// Disclose keeps the claims named in revealKeys and hides every other claim:
// its value leaves the credential, its salt leaves the proof and its digest
// joins the hidden digests. Mandatory statements are always kept, even when
// not requested. A claim that was hidden earlier cannot be revealed again.
func Disclose(cred models.Credential, proof models.FinalizedProof, revealKeys []string) (models.Credential, models.FinalizedProof, error) {
	reveal := make(map[string]struct{}, len(revealKeys))
	for _, key := range pstrings.DedupeAndTrim(revealKeys) {
		if key == models.SubjectIDKey {
			continue
		}
		if _, ok := cred.CredentialSubject[key]; !ok {
			return models.Credential{}, models.FinalizedProof{}, models.UnknownPathError(key)
		}
		reveal[key] = struct{}{}
	}

	outCred := cred.Clone()
	outProof := proof.Clone()
	for _, key := range cred.ClaimKeys() {
		if _, keep := reveal[key]; keep {
			continue
		}
		path := models.PathForClaim(key)
		salt, ok := proof.Salts[path]
		if !ok {
			return models.Credential{}, models.FinalizedProof{}, models.DigestMismatchError("claim %q has no salt", key)
		}
		d, err := digest.Of(proof.Scheme, path, salt, cred.CredentialSubject[key])
		if err != nil {
			return models.Credential{}, models.FinalizedProof{}, err
		}
		outProof.HiddenDigests = append(outProof.HiddenDigests, d)
		delete(outProof.Salts, path)
		delete(outCred.CredentialSubject, key)
	}
	slices.SortFunc(outProof.HiddenDigests, models.Digest.Compare)

	doc := outProof.Document()
	outCred.Proof = &doc
	return outCred, outProof, nil
}

