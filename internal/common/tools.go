package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID generates a dashless UUID with an optional prefix
func GenerateUUID(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateTxID generates a transaction ID with "tx" prefix
func GenerateTxID() string {
	return GenerateUUID("tx")
}

// GenerateEventID generates an event ID with "evt" prefix
func GenerateEventID() string {
	return GenerateUUID("evt")
}

// GenerateBatchID generates an operate batch ID with "batch" prefix
func GenerateBatchID() string {
	return GenerateUUID("batch")
}
