package ids

import (
	"github.com/google/uuid"
)

// UUIDTokenGenerator fills idempotency tokens with random version 4 UUIDs.
type UUIDTokenGenerator struct{}

func (UUIDTokenGenerator) IdempotencyToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// StaticTokenGenerator always returns the same token. Useful for replaying
// recorded requests.
type StaticTokenGenerator string

func (g StaticTokenGenerator) IdempotencyToken() (string, error) { return string(g), nil }
