package topic

import (
	"errors"
	"regexp"
)

// ErrInvalidName is returned by ValidateName when a topic name fails
// the grammar in spec.md §6: [A-Za-z0-9_.-]+, length 1-255.
var ErrInvalidName = errors.New("topic: invalid name")

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateName checks a topic name against the grammar in spec.md §6.
// Grounded on original_source/pubsub-system/src/utils/validation.py.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > 255 {
		return ErrInvalidName
	}
	if !nameRe.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}
