package item

import "errors"

var (
	// ErrNotFound covers both a missing item and an owner mismatch, so that
	// existence of other users' items never leaks.
	ErrNotFound = errors.New("item not found")
	// ErrNameTaken signals a sibling with the same name already exists.
	ErrNameTaken = errors.New("name already taken")
	// ErrNotAFolder is returned when a parent reference points at a file.
	ErrNotAFolder = errors.New("parent is not a folder")
	// ErrCycle indicates a parent chain that loops or a move that would
	// create one. A loop in stored data is corruption and is never retried.
	ErrCycle = errors.New("folder cycle detected")
	// ErrInvalidName rejects empty or path-like item names.
	ErrInvalidName = errors.New("invalid item name")
)
