package query

import (
	"fmt"
	"reflect"
	"strings"
)

// placeholder marks a positional parameter inside a condition clause.
// Builder numbers placeholders when the statement is rendered.
const placeholder = "?"

type condition struct {
	clause string
	args   []any
}

// SortField is one ORDER BY term. Field is a view name or column name of
// the projection.
type SortField struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// ParseSortFields parses "stage,-created_at" into sort fields. A leading
// "-" selects descending order. Returns nil for empty input.
func ParseSortFields(s string) []SortField {
	var fields []SortField

	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}

	return fields
}

// Builder accumulates conditions and ordering for one projection.
type Builder struct {
	projection  *ProjectionMap
	conditions  []condition
	order       []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder for projection. defaultSort applies when no
// valid sort fields are set.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// Build renders a SELECT with the current conditions and ordering.
func (b *Builder) Build() (string, []any) {
	where, args := b.where()
	return b.selectFrom() + where + b.orderBy(), args
}

// BuildCount renders a COUNT(*) with the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.where()
	return "SELECT COUNT(*) FROM " + b.projection.From() + where, args
}

// BuildPage renders a SELECT limited to one page. page is 1-based.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	where, args := b.where()
	offset := max(page-1, 0) * pageSize

	stmt := fmt.Sprintf("%s%s%s LIMIT %d OFFSET %d",
		b.selectFrom(), where, b.orderBy(), pageSize, offset)

	return stmt, args
}

// BuildSingle renders a SELECT for the row whose field equals id.
// Accumulated conditions are ignored.
func (b *Builder) BuildSingle(field string, id any) (string, []any) {
	stmt := fmt.Sprintf("%s WHERE %s = $1", b.selectFrom(), b.projection.Column(field))
	return stmt, []any{id}
}

// OrderByFields replaces the sort order. Fields the projection does not
// know are dropped when rendering.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.order = fields
	return b
}

// WhereEquals adds field = value. No-op for nil values.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	return b.add(b.projection.Column(field)+" = "+placeholder, value)
}

// WhereContains adds a case-insensitive substring match. No-op for nil or
// empty values.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.add(b.projection.Column(field)+" ILIKE "+placeholder, "%"+*value+"%")
}

// WhereIn adds field IN (values...). No-op for empty values.
func (b *Builder) WhereIn(field string, values ...any) *Builder {
	if len(values) == 0 {
		return b
	}
	marks := strings.TrimSuffix(strings.Repeat(placeholder+", ", len(values)), ", ")
	return b.add(b.projection.Column(field)+" IN ("+marks+")", values...)
}

// WhereSearch matches search case-insensitively against any of fields.
// No-op for nil or empty search.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	clauses := make([]string, len(fields))
	args := make([]any, len(fields))
	pattern := "%" + *search + "%"

	for i, field := range fields {
		clauses[i] = b.projection.Column(field) + " ILIKE " + placeholder
		args[i] = pattern
	}

	return b.add("("+strings.Join(clauses, " OR ")+")", args...)
}

func (b *Builder) add(clause string, args ...any) *Builder {
	b.conditions = append(b.conditions, condition{clause: clause, args: args})
	return b
}

func (b *Builder) selectFrom() string {
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From()
}

func (b *Builder) orderBy() string {
	terms := b.sortTerms(b.order)
	if len(terms) == 0 {
		terms = b.sortTerms(b.defaultSort)
	}
	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func (b *Builder) sortTerms(fields []SortField) []string {
	var terms []string
	for _, f := range fields {
		col, ok := b.projection.Sortable(f.Field)
		if !ok {
			continue
		}
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		terms = append(terms, col+" "+dir)
	}
	return terms
}

func (b *Builder) where() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	var (
		clauses = make([]string, len(b.conditions))
		args    []any
	)

	for i, c := range b.conditions {
		clause := c.clause
		for _, arg := range c.args {
			args = append(args, arg)
			clause = strings.Replace(clause, placeholder, fmt.Sprintf("$%d", len(args)), 1)
		}
		clauses[i] = clause
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}

	return false
}
