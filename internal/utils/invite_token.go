package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/clearcomply/compliance-api/internal/constants"
)

// GenerateInviteToken generates the opaque single-use token carried by
// an invitation link.
func GenerateInviteToken() (string, error) {
	bytes := make([]byte, constants.InviteTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
