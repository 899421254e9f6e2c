package digest

import "anchorcred/internal/credential/models"

// StructuralStatements returns the document-level statements of a credential:
// schema, issuer, delegation and legitimations. Empty members produce no
// statement.
func StructuralStatements(cred models.Credential) []Statement {
	out := make([]Statement, 0, 3+len(cred.Legitimations))
	if cred.SchemaRef != "" {
		out = append(out, Statement{Path: models.PathSchemaID, Value: cred.SchemaRef})
	}
	if cred.Issuer != "" {
		out = append(out, Statement{Path: models.PathIssuer, Value: cred.Issuer})
	}
	if id := cred.DelegationID(); id != "" {
		out = append(out, Statement{Path: models.PathDelegationID, Value: id})
	}
	for i, leg := range cred.Legitimations {
		out = append(out, Statement{Path: models.PathForLegitimation(i), Value: leg})
	}
	return out
}

// RevealedStatements returns every statement whose value is present in the
// credential document, including the subject id and revealed claims.
func RevealedStatements(cred models.Credential) []Statement {
	out := make([]Statement, 0, len(cred.CredentialSubject)+3+len(cred.Legitimations))
	if subject, ok := cred.CredentialSubject[models.SubjectIDKey]; ok {
		out = append(out, Statement{Path: models.PathSubjectID, Value: subject})
	}
	for _, key := range cred.ClaimKeys() {
		out = append(out, Statement{Path: models.PathForClaim(key), Value: cred.CredentialSubject[key]})
	}
	return append(out, StructuralStatements(cred)...)
}
