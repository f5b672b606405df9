// Package storage defines shared persistence errors for the auth stores.
//
// Store contracts live next to the managers that consume them (otp, ceremony,
// account, credential); the sqlite implementation satisfies all of them over
// a single database file.
package storage

import "github.com/meridianbank/passkeyd/internal/platform/errors"

// ErrNotFound indicates a requested record is missing, or that a conditional
// consume matched no row (the record was already consumed concurrently).
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrDuplicate indicates a write collided with an existing unique value, such
// as a credential id or public key that is already registered.
var ErrDuplicate = errors.New(errors.CodeCredentialAlreadyExists, "record already exists")
