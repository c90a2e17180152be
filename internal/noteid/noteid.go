// Package noteid generates collision-resistant identifiers for notes and attachments.
package noteid

import gonanoid "github.com/matoous/go-nanoid/v2"

// DefaultLength is the id length used for notes and attachments.
const DefaultLength = 21

// New returns a fresh 21-character URL-safe identifier.
// Randomness failure is a process-level fault, not a recoverable error.
func New() string {
	return NewWith(DefaultLength)
}

// NewWith returns a fresh URL-safe identifier of the given length.
func NewWith(length int) string {
	id, err := gonanoid.New(length)
	if err != nil {
		panic("noteid: random source unavailable: " + err.Error())
	}
	return id
}
