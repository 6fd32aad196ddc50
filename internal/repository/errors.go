package repository

import "errors"

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation (SQL, NoSQL, etc.)
// from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write collides with a uniqueness constraint,
// such as a second attempt with the same number for a team.
var ErrDuplicate = errors.New("duplicate record")
