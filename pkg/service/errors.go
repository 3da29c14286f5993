package service

import "errors"

// ErrSessionNotFound is returned wherever an operation targets a session
// that Store doesn't have a record for.
var ErrSessionNotFound = errors.New("session not found")

// ErrAtCapacity is returned by CheckCapacity when the number of active
// sessions has reached MaxConcurrentStreams.
var ErrAtCapacity = errors.New("at maximum concurrent stream capacity")
