package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix namespaces generated session identities at the transport layer.
const Prefix = "ccall-"

// New generates a fresh session identity from a cryptographically strong
// random source. Uniqueness is probabilistic; identities are never centrally
// allocated.
func New() string {
	return Prefix + uuid.NewString()
}

// Validate checks that an identity is a usable transport address.
func Validate(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("identity is required")
	}
	if trimmed != id {
		return fmt.Errorf("identity must not carry surrounding whitespace")
	}
	if strings.ContainsAny(id, " \t\n") {
		return fmt.Errorf("identity must not contain whitespace")
	}
	return nil
}
