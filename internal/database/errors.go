package database

import "errors"

var (
	ErrHostNotFound    = errors.New("host not found")
	ErrListingNotFound = errors.New("listing not found")
	// ErrNotLinked means the listing has no vendor identifier, so calendar
	// data cannot be fetched for it.
	ErrNotLinked = errors.New("listing is not linked to a vendor listing")
)
