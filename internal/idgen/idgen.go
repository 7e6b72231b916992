// Package idgen generates and validates local ids for storage entities.
//
// The teacher's idgen package (steveyegge/beads) builds short, human-typed,
// content-derived hash ids for issue tracker rows. That fits an id a human
// reads and types on a CLI; it does not fit this domain, where a local id is
// an opaque database-internal primary key the original client generates as
// a QUuid and never shows a human (spec.md §3 "Identifiers"). This package
// keeps the teacher's role (one call generates a fresh local id, one call
// validates an id someone handed back to us) but swaps the generation
// algorithm for github.com/google/uuid, the convention used for opaque ids
// elsewhere in the example pack (cuemby-warren, erauner12-toolbridge-api).
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// NewLocalID generates a fresh local id for any entity kind.
func NewLocalID() string {
	return uuid.NewString()
}

// IsValid reports whether s is a syntactically valid local id (or guid --
// both are free-form non-empty strings at the storage layer; the only hard
// requirement is non-emptiness, since guids may originate from the Evernote
// service in its own format).
func IsValid(s string) bool {
	return s != ""
}

// RequireNonEmpty returns a formatted error for an empty id field, used
// across the entity handlers' validation paths.
func RequireNonEmpty(field, s string) error {
	if s == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	return nil
}
