// Package fingerprint computes deterministic content fingerprints used
// as cache and idempotency keys for analysis requests.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/draftwise/draftwise-api/internal/models"
)

// version is folded into the digest so a canonicalization change
// invalidates all previously cached entries.
const version = "v1"

// Compute returns a stable hex digest of the text and the subset of
// options that influence model output. Text is hashed as-is; callers
// own any normalization. Pure, no I/O.
func Compute(text string, opts models.AnalysisOptions) string {
	var sb strings.Builder
	sb.WriteString(version)
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(len(text)))
	sb.WriteByte('|')
	sb.WriteString(text)
	sb.WriteByte('|')
	sb.WriteString(flag(opts.IncludeGrammar))
	sb.WriteString(flag(opts.IncludeStyle))
	sb.WriteString(flag(opts.IncludeReadability))
	sb.WriteByte('|')
	sb.WriteString(string(opts.AudienceLevel))
	sb.WriteByte('|')
	sb.WriteString(string(opts.DocumentType))

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
