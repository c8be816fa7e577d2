package prompts

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/ldaa/pkg/query"
	"github.com/JaimeStill/ldaa/pkg/repository"
)

const returning = `RETURNING id, name, stage, instructions, description, active, created_at, updated_at`

var projection = query.
	NewProjectionMap("public", "prompts", "p").
	Project("id", "ID").
	Project("name", "Name").
	Project("stage", "Stage").
	Project("instructions", "Instructions").
	Project("description", "Description").
	Project("active", "Active").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = []query.SortField{
	{Field: "Stage"},
	{Field: "Name"},
}

// Filters narrows prompt listings. Nil fields are ignored.
// Name matches case-insensitively by substring.
type Filters struct {
	Stage  *Stage  `json:"stage,omitempty"`
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Stage", f.Stage).
		WhereContains("Name", f.Name).
		WhereEquals("Active", f.Active)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unknown stages and unparseable booleans are dropped.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if stage, err := ParseStage(values.Get("stage")); err == nil {
		f.Stage = &stage
	}

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if v, err := strconv.ParseBool(values.Get("active")); err == nil {
		f.Active = &v
	}

	return f
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var p Prompt
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Stage,
		&p.Instructions,
		&p.Description,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
