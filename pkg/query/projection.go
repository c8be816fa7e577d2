// Package query builds parameterized PostgreSQL SELECT statements from a
// projection of view names onto table columns.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps view names to column expressions of a single aliased
// table. Plain columns are qualified with the alias; computed expressions
// are used verbatim.
type ProjectionMap struct {
	schema     string
	table      string
	alias      string
	columns    map[string]string
	columnList []string
	sortable   map[string]string
}

// NewProjectionMap creates a ProjectionMap for schema.table with the given alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema:   schema,
		table:    table,
		alias:    alias,
		columns:  make(map[string]string),
		sortable: make(map[string]string),
	}
}

// Project maps a table column to a view name. Both names are accepted
// as sort keys.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	qualified := fmt.Sprintf("%s.%s", p.alias, column)
	p.sortable[column] = qualified
	return p.add(qualified, viewName)
}

// Expr maps a computed SQL expression to a view name. The expression may
// reference the table alias, for example a correlated subquery.
func (p *ProjectionMap) Expr(expr, viewName string) *ProjectionMap {
	return p.add("("+expr+")", viewName)
}

func (p *ProjectionMap) add(expr, viewName string) *ProjectionMap {
	p.columns[viewName] = expr
	p.sortable[viewName] = expr
	p.columnList = append(p.columnList, expr)
	return p
}

// Alias returns the table alias.
func (p *ProjectionMap) Alias() string {
	return p.alias
}

// From returns the FROM target: schema.table alias.
func (p *ProjectionMap) From() string {
	return fmt.Sprintf("%s.%s %s", p.schema, p.table, p.alias)
}

// Column returns the expression for a view name, or the input if not mapped.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.columns[viewName]; ok {
		return col
	}
	return viewName
}

// Sortable resolves a client-supplied sort key. Only projected names
// resolve, so arbitrary input never reaches the ORDER BY clause.
func (p *ProjectionMap) Sortable(key string) (string, bool) {
	col, ok := p.sortable[key]
	return col, ok
}

// Columns returns the select list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.columnList, ", ")
}
