package runs

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/JaimeStill/ldaa/internal/workflow"
	"github.com/JaimeStill/ldaa/pkg/query"
	"github.com/JaimeStill/ldaa/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "runs", "r").
	Project("id", "ID").
	Project("document_a", "DocumentA").
	Project("document_b", "DocumentB").
	Project("stage", "Stage").
	Project("last_completed", "LastCompleted").
	Project("status", "Status").
	Project("error", "Error").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Expr("SELECT COUNT(*) FROM public.checkpoints c WHERE c.run_id = r.id", "Checkpoints")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters narrows run listings. Status matches any of the listed values;
// Stage matches exactly. Empty fields are ignored.
type Filters struct {
	Status []workflow.Status `json:"status,omitempty"`
	Stage  *string           `json:"stage,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	statuses := make([]any, len(f.Status))
	for i, s := range f.Status {
		statuses[i] = string(s)
	}

	return b.
		WhereIn("Status", statuses...).
		WhereEquals("Stage", f.Stage)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	for s := range strings.SplitSeq(values.Get("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			f.Status = append(f.Status, workflow.Status(s))
		}
	}

	if s := values.Get("stage"); s != "" {
		f.Stage = &s
	}

	return f
}

func scanSummary(s repository.Scanner) (Summary, error) {
	var r Summary
	err := s.Scan(
		&r.ID,
		&r.DocumentA,
		&r.DocumentB,
		&r.Stage,
		&r.LastCompleted,
		&r.Status,
		&r.Error,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.Checkpoints,
	)
	return r, err
}

func scanCheckpoint(s repository.Scanner) (workflow.Checkpoint, error) {
	var (
		cp        workflow.Checkpoint
		review    []byte
		artifacts []byte
		state     []byte
	)

	err := s.Scan(
		&cp.RunID,
		&cp.Sequence,
		&cp.Stage,
		&cp.Completed,
		&cp.Status,
		&review,
		&cp.Error,
		&artifacts,
		&state,
		&cp.CreatedAt,
	)
	if err != nil {
		return cp, err
	}

	if len(review) > 0 {
		cp.Review = new(workflow.ReviewContext)
		if err := json.Unmarshal(review, cp.Review); err != nil {
			return cp, err
		}
	}

	if len(artifacts) > 0 {
		cp.Artifacts = new(workflow.Artifacts)
		if err := json.Unmarshal(artifacts, cp.Artifacts); err != nil {
			return cp, err
		}
	}

	cp.State = json.RawMessage(state)
	return cp, nil
}
