// Package idgen assigns universally unique string ids for messages and
// session client ids. Grounded on cuemby-warren's use of
// github.com/google/uuid for identifier generation.
package idgen

import "github.com/google/uuid"

// NewMessageID returns a fresh message id.
func NewMessageID() string { return uuid.NewString() }

// NewClientID returns a fresh session client id.
func NewClientID() string { return uuid.NewString() }
