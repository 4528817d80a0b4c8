package recorder

import (
	"strings"

	"github.com/google/uuid"
)

// correlationIDLength is the number of hex characters kept from a UUID.
// The prefix carries 60 random bits (one nibble is the UUID version).
const correlationIDLength = 16

// NewCorrelationID returns a short random token that tags the request-side
// and response-side records of one request.
func NewCorrelationID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return id[:correlationIDLength]
}
