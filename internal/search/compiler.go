package search

import (
	"fmt"
	"strings"
)

// Predicate is a compiled, parameterized SQL fragment: a WHERE-clause body
// plus the positional args it binds, and the extra JOINs its column
// references require. Callers never see raw SQL text originating from user
// input (spec.md §4.4 "The compiler never interpolates a value into SQL
// text"); every Value/NumericValue/DateValue ends up as a bound '?' arg.
type Predicate struct {
	Where string
	Args  []any
	Joins []string
}

// Compile turns a normalized Query into a Predicate ready to splice into a
// "SELECT ... FROM notes WHERE <Where>" statement. notes.stripped columns
// hold the diacritic/case-folded form written by the notes handler at
// put-time, so every string comparison here is itself already folded
// (Term.Value was folded by the parser) and can use a plain '=' / LIKE
// against the stripped column rather than re-folding at query time.
func Compile(q *Query) (Predicate, error) {
	var clauses []string
	var args []any
	joinSet := map[string]string{}

	for _, t := range q.Terms {
		clause, clauseArgs, joins, err := compileTerm(t)
		if err != nil {
			return Predicate{}, err
		}
		if t.Negated {
			clause = "NOT (" + clause + ")"
		}
		clauses = append(clauses, clause)
		args = append(args, clauseArgs...)
		for alias, join := range joins {
			joinSet[alias] = join
		}
	}

	if len(clauses) == 0 {
		return Predicate{Where: "1=1"}, nil
	}

	sep := " AND "
	if q.AnyMode {
		sep = " OR "
	}

	joins := make([]string, 0, len(joinSet))
	for _, j := range joinSet {
		joins = append(joins, j)
	}

	return Predicate{
		Where: strings.Join(clauses, sep),
		Args:  args,
		Joins: joins,
	}, nil
}

func compileTerm(t Term) (string, []any, map[string]string, error) {
	switch t.Kind {
	case TermFree:
		clause, args := compileFree(t)
		return clause, args, nil, nil
	case TermTag:
		return compileJoinedMembership("tags", "tag_local_id", "note_tags", "tags.name_stripped", t)
	case TermNotebook:
		return compileExistenceOrValue("notebooks.name_stripped", t, map[string]string{
			"notebooks": "JOIN notebooks ON notebooks.local_id = notes.notebook_local_id",
		})
	case TermResourceMime:
		return compileJoinedMembership("resources", "note_local_id", "", "resources.mime_stripped", t)
	case TermCreated:
		return compileDateCompare("notes.created", t)
	case TermUpdated:
		return compileDateCompare("notes.updated", t)
	case TermSubjectDate:
		return compileDateCompare("note_attributes.subject_date", t)
	case TermLatitude:
		return compileNumericCompare("note_attributes.latitude", t)
	case TermLongitude:
		return compileNumericCompare("note_attributes.longitude", t)
	case TermAltitude:
		return compileNumericCompare("note_attributes.altitude", t)
	case TermReminderOrder:
		return compileNumericCompare("note_attributes.reminder_order", t)
	case TermReminderTime:
		return compileDateCompare("note_attributes.reminder_time", t)
	case TermReminderDoneTime:
		return compileDateCompare("note_attributes.reminder_done_time", t)
	case TermAuthor:
		return compileExistenceOrValue("note_attributes.author_stripped", t, nil)
	case TermSource:
		return compileExistenceOrValue("note_attributes.source_stripped", t, nil)
	case TermSourceApplication:
		return compileExistenceOrValue("note_attributes.source_application_stripped", t, nil)
	case TermContentClass:
		return compileExistenceOrValue("note_attributes.content_class_stripped", t, nil)
	case TermPlaceName:
		return compileExistenceOrValue("note_attributes.place_name_stripped", t, nil)
	case TermApplicationData:
		return compileApplicationData(t)
	case TermTodo:
		return compileTodo(t)
	case TermEncryption:
		return `EXISTS (SELECT 1 FROM resources WHERE resources.note_local_id = notes.local_id AND resources.mime = 'application/vnd.evernote.encrypted')`, nil, nil, nil
	default:
		return "", nil, nil, fmt.Errorf("search: unhandled term kind %d", t.Kind)
	}
}

// compileFree matches a free term against the full-text surface spec.md
// names: note title, note content, tag names, and resource recognition
// text. Each alternative is ORed together regardless of the query's overall
// AnyMode/all-terms join, since a free term is itself a match against
// multiple columns/related rows, not multiple independent terms.
func compileFree(t Term) (string, []any) {
	pattern := likePattern(t.Value, t.IsWildcard)
	clause := fmt.Sprintf(
		`(notes.title_stripped LIKE ? ESCAPE '\' OR notes.content_stripped LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM note_tags JOIN tags ON tags.local_id = note_tags.tag_local_id
				WHERE note_tags.note_local_id = notes.local_id AND tags.name_stripped LIKE ? ESCAPE '\')
			OR EXISTS (SELECT 1 FROM resources
				WHERE resources.note_local_id = notes.local_id AND resources.reco_stripped LIKE ? ESCAPE '\'))`,
	)
	return clause, []any{pattern, pattern, pattern, pattern}
}

func compileExistenceOrValue(col string, t Term, joins map[string]string) (string, []any, map[string]string, error) {
	if t.IsExistence {
		return fmt.Sprintf("%s IS NOT NULL", col), nil, joins, nil
	}
	pattern := likePattern(t.Value, t.IsWildcard)
	return fmt.Sprintf("%s LIKE ? ESCAPE '\\'", col), []any{pattern}, joins, nil
}

// compileJoinedMembership matches notes that have at least one related row
// (tag, resource, ...) whose stripped name/mime matches. table is the
// target entity table, junction is the many-to-many table ("" when the
// relation is a direct FK column on the child, as with resources).
func compileJoinedMembership(table, fkCol, junction, stripCol string, t Term) (string, []any, map[string]string, error) {
	if t.IsExistence {
		if junction == "" {
			return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s.note_local_id = notes.local_id)", table, table), nil, nil, nil
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s.note_local_id = notes.local_id)", junction, junction), nil, nil, nil
	}
	pattern := likePattern(t.Value, t.IsWildcard)
	if junction == "" {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s.note_local_id = notes.local_id AND %s LIKE ? ESCAPE '\\')", table, table, stripCol),
			[]any{pattern}, nil, nil
	}
	return fmt.Sprintf(
		"EXISTS (SELECT 1 FROM %s JOIN %s ON %s.%s = %s.local_id WHERE %s.note_local_id = notes.local_id AND %s LIKE ? ESCAPE '\\')",
		junction, table, junction, fkCol, table, junction, stripCol,
	), []any{pattern}, nil, nil
}

// compileDateCompare and compileNumericCompare always emit ">= ?"; a
// negated term becomes "NOT (col >= ?)" through Compile's NOT wrapper.
func compileDateCompare(col string, t Term) (string, []any, map[string]string, error) {
	return fmt.Sprintf("%s >= ?", col), []any{t.DateValue}, nil, nil
}

func compileNumericCompare(col string, t Term) (string, []any, map[string]string, error) {
	return fmt.Sprintf("%s >= ?", col), []any{t.NumericValue}, nil, nil
}

func compileTodo(t Term) (string, []any, map[string]string, error) {
	if t.IsExistence {
		return "note_attributes.todo IS NOT NULL", nil, nil, nil
	}
	return "note_attributes.todo = ?", []any{t.BoolValue}, nil, nil
}

// compileApplicationData matches on either key presence (applicationData:key)
// or a key=value pair (applicationData:key=value), both stored in the
// note_attributes_app_data_map shadow table as (note_local_id, key, value).
func compileApplicationData(t Term) (string, []any, map[string]string, error) {
	key, value, hasValue := strings.Cut(t.Value, "=")
	if t.IsExistence {
		return "EXISTS (SELECT 1 FROM note_attributes_app_data_map m WHERE m.note_local_id = notes.local_id)", nil, nil, nil
	}
	if !hasValue {
		return "EXISTS (SELECT 1 FROM note_attributes_app_data_map m WHERE m.note_local_id = notes.local_id AND m.key = ?)",
			[]any{key}, nil, nil
	}
	return "EXISTS (SELECT 1 FROM note_attributes_app_data_map m WHERE m.note_local_id = notes.local_id AND m.key = ? AND m.value = ?)",
		[]any{key, value}, nil, nil
}

// likePattern turns a folded term value into a SQL LIKE pattern, escaping
// any literal '%'/'_'/'\' the user typed before appending the wildcard.
func likePattern(value string, wildcard bool) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
	if wildcard {
		return escaped + "%"
	}
	return escaped
}
