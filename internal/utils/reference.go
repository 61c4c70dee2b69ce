package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewPaymentReference returns a random 128-bit identifier rendered as 32
// lowercase hex characters without separators.
func NewPaymentReference() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
