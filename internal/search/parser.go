package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse tokenizes and normalizes a query string into a Query AST, resolving
// date anchors against now (spec.md §4.4 "Date specs"). now is passed in
// rather than read from time.Now() so compilation is deterministic and
// testable.
func Parse(input string, now time.Time) (*Query, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("search: empty query")
	}

	q := &Query{}
	for _, tok := range tokens {
		if !tok.IsPhrase && !tok.Negated && tok.Text == "any:" {
			q.AnyMode = true
			continue
		}

		term, err := normalizeToken(tok, now)
		if err != nil {
			return nil, err
		}
		q.Terms = append(q.Terms, term)
	}
	return q, nil
}

func normalizeToken(tok RawToken, now time.Time) (Term, error) {
	if tok.IsPhrase {
		return Term{
			Kind:       TermFree,
			Negated:    tok.Negated,
			Value:      StripDiacritics(stripWildcardMarker(tok.Text)),
			IsWildcard: strings.Contains(tok.Text, "*"),
		}, nil
	}

	prefix, value, isTyped := splitTypedTerm(tok.Text)
	if !isTyped {
		return Term{
			Kind:       TermFree,
			Negated:    tok.Negated,
			Value:      StripDiacritics(strings.TrimSuffix(tok.Text, "*")),
			IsWildcard: strings.HasSuffix(tok.Text, "*"),
		}, nil
	}

	kind, ok := attributePrefixes[prefix]
	if !ok {
		// Not a recognized typed prefix: treat the whole token as a free
		// term (e.g. a bare word that happens to contain a colon).
		return Term{
			Kind:    TermFree,
			Negated: tok.Negated,
			Value:   StripDiacritics(tok.Text),
		}, nil
	}

	term := Term{Kind: kind, Negated: tok.Negated}
	if value == "*" {
		term.IsExistence = true
		return term, nil
	}

	switch kind {
	case TermCreated, TermUpdated, TermSubjectDate, TermReminderTime, TermReminderDoneTime:
		t, err := parseDateSpec(value, now)
		if err != nil {
			return Term{}, fmt.Errorf("search: %s: %w", tok.Text, err)
		}
		term.DateValue = t
	case TermLatitude, TermLongitude, TermAltitude, TermReminderOrder:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Term{}, fmt.Errorf("search: %s: invalid numeric value: %w", tok.Text, err)
		}
		term.NumericValue = n
	case TermTodo:
		switch value {
		case "true":
			term.BoolValue = true
		case "false":
			term.BoolValue = false
		default:
			return Term{}, fmt.Errorf("search: %s: todo: requires true, false or *", tok.Text)
		}
	case TermResourceMime, TermTag, TermNotebook, TermAuthor, TermSource,
		TermSourceApplication, TermContentClass, TermPlaceName, TermApplicationData:
		term.Value = StripDiacritics(strings.TrimSuffix(value, "*"))
		term.IsWildcard = strings.HasSuffix(value, "*")
	case TermEncryption:
		// no value to carry; presence alone is the match.
	}
	return term, nil
}

// String renders a term for error messages and debug logging.
func (t Term) String() string {
	return fmt.Sprintf("kind=%d negated=%v value=%q", t.Kind, t.Negated, t.Value)
}

func stripWildcardMarker(phrase string) string {
	return strings.ReplaceAll(phrase, "*", "")
}

// splitTypedTerm splits "prefix:value" into its parts. A token is only
// "typed" if the text before the first colon is a known attribute prefix
// and there is at least one character of value. "encryption" is the one
// prefix also accepted with an empty value ("encryption:").
func splitTypedTerm(text string) (prefix, value string, ok bool) {
	idx := strings.IndexByte(text, ':')
	if idx < 0 {
		return "", "", false
	}
	prefix = text[:idx]
	value = text[idx+1:]
	if _, known := attributePrefixes[prefix]; !known {
		return "", "", false
	}
	if value == "" && prefix != "encryption" {
		return "", "", false
	}
	return prefix, value, true
}

// parseDateSpec resolves an ISO date or an anchored offset
// (day|week|month|year, optionally suffixed with +N or -N) against now.
func parseDateSpec(spec string, now time.Time) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", spec); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t, nil
	}

	anchor, offsetText := spec, ""
	for i, r := range spec {
		if r == '+' || r == '-' {
			anchor, offsetText = spec[:i], spec[i:]
			break
		}
	}

	var base time.Time
	switch anchor {
	case "day":
		y, m, d := now.Date()
		base = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case "week":
		y, m, d := now.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		base = midnight.AddDate(0, 0, -int(midnight.Weekday()))
	case "month":
		y, m, _ := now.Date()
		base = time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	case "year":
		y, _, _ := now.Date()
		base = time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Time{}, fmt.Errorf("invalid date spec %q", spec)
	}

	if offsetText == "" {
		return base, nil
	}
	n, err := strconv.Atoi(offsetText)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid offset %q in date spec %q", offsetText, spec)
	}
	switch anchor {
	case "day":
		return base.AddDate(0, 0, n), nil
	case "week":
		return base.AddDate(0, 0, 7*n), nil
	case "month":
		return base.AddDate(0, n, 0), nil
	case "year":
		return base.AddDate(n, 0, 0), nil
	}
	return base, nil
}
