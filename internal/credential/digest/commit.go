package digest

import (
	"slices"

	"anchorcred/internal/credential/models"
)

// Commit aggregates statement digests into the root digest. Digests are sorted
// by byte value, never by path, so the result is independent of input order
// and does not leak path names through ordering.
func Commit(scheme models.HashScheme, digests []models.Digest) (models.Digest, error) {
	sorted := slices.Clone(digests)
	slices.SortFunc(sorted, models.Digest.Compare)

	parts := make([][]byte, len(sorted))
	for i := range sorted {
		parts[i] = sorted[i][:]
	}
	return Sum(scheme, parts...)
}

// CommitStatements is Commit over the digest values of statements.
func CommitStatements(scheme models.HashScheme, statements []models.StatementDigest) (models.Digest, error) {
	digests := make([]models.Digest, len(statements))
	for i, st := range statements {
		digests[i] = st.Digest
	}
	return Commit(scheme, digests)
}
