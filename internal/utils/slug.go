package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/clearcomply/compliance-api/internal/constants"
)

// Slugify converts a workspace name into a URL-safe slug with a short
// random suffix to keep slugs unique without retry loops.
func Slugify(name string) (string, error) {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	base := strings.Trim(b.String(), "-")
	if base == "" {
		base = "workspace"
	}

	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate slug suffix: %w", err)
	}

	slug := fmt.Sprintf("%s-%s", base, hex.EncodeToString(suffix))
	if len(slug) > constants.MaxSlugLength {
		slug = slug[len(slug)-constants.MaxSlugLength:]
	}
	return slug, nil
}
