package search

import "time"

// TermKind identifies which column/predicate family a term matches
// against (spec.md §4.4 "Term kinds").
type TermKind int

const (
	TermFree TermKind = iota
	TermTag
	TermNotebook
	TermResourceMime
	TermCreated
	TermUpdated
	TermSubjectDate
	TermLatitude
	TermLongitude
	TermAltitude
	TermAuthor
	TermSource
	TermSourceApplication
	TermContentClass
	TermPlaceName
	TermApplicationData
	TermReminderOrder
	TermReminderTime
	TermReminderDoneTime
	TermTodo
	TermEncryption
)

// attributePrefixes maps the typed-term prefix (spec.md §4.4) to its kind.
// "any:" is handled separately as a mode switch, not a term.
var attributePrefixes = map[string]TermKind{
	"tag":               TermTag,
	"notebook":          TermNotebook,
	"resource":          TermResourceMime,
	"created":           TermCreated,
	"updated":           TermUpdated,
	"subjectDate":       TermSubjectDate,
	"latitude":          TermLatitude,
	"longitude":         TermLongitude,
	"altitude":          TermAltitude,
	"author":            TermAuthor,
	"source":            TermSource,
	"sourceApplication": TermSourceApplication,
	"contentClass":      TermContentClass,
	"placeName":         TermPlaceName,
	"applicationData":   TermApplicationData,
	"reminderOrder":     TermReminderOrder,
	"reminderTime":      TermReminderTime,
	"reminderDoneTime":  TermReminderDoneTime,
	"todo":              TermTodo,
	"encryption":        TermEncryption,
}

// Term is one normalized query term: language-neutral, so tests can assert
// on it without touching SQL (spec.md §9 "Design notes").
type Term struct {
	Kind       TermKind
	Negated    bool
	Value      string    // raw value text (already diacritic/case-folded for free/string-valued kinds)
	IsWildcard bool       // value ends in '*' (prefix match) -- free/notebook/tag/resource terms
	IsExistence bool      // value == "*" alone (match-any-value / negated => no-value)
	NumericValue float64  // populated for latitude/longitude/altitude/reminderOrder
	DateValue  time.Time  // populated for created/updated/subjectDate/reminderTime/reminderDoneTime
	BoolValue  bool       // populated for todo:true / todo:false
}

// Query is the fully normalized AST for a search string: a flat list of
// terms plus the combination mode. The distilled grammar has no nested
// grouping -- "any:" switches the combination mode for the whole query
// (spec.md §4.4), it does not introduce a sub-expression.
type Query struct {
	AnyMode bool
	Terms   []Term
}
