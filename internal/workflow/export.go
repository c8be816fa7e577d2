package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Artifact file names under a run's artifact prefix.
const (
	StructuredArtifact     = "result.json"
	ReportArtifact         = "report.md"
	DetailedReportArtifact = "detailed_report.md"
)

// ArtifactKey returns the storage key of an exported artifact.
func ArtifactKey(runID, name string) string {
	return fmt.Sprintf("runs/%s/artifacts/%s", runID, name)
}

// Record is the structured export of a run.
type Record struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	State       *RunState `json:"state"`
}

type upload struct {
	key         string
	body        []byte
	contentType string
}

// ExportStage returns a stage that writes the structured record and the
// narrative report, plus the detailed comparison report when one exists.
// Storage failures are fatal.
func ExportStage(rt *Runtime) Stage {
	return NewStage(StageExport, func(ctx context.Context, s *RunState, cfg Config) (*RunState, error) {
		artifacts := &Artifacts{
			Structured: ArtifactKey(s.RunID, StructuredArtifact),
			Report:     ArtifactKey(s.RunID, ReportArtifact),
		}
		if s.Comparison != nil && strings.TrimSpace(s.Comparison.DetailedReport) != "" {
			artifacts.DetailedReport = ArtifactKey(s.RunID, DetailedReportArtifact)
		}
		s.Artifacts = artifacts

		record, err := json.MarshalIndent(Record{
			RunID:       s.RunID,
			GeneratedAt: time.Now().UTC(),
			State:       s,
		}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("%w: encode record: %w", ErrExportFailed, err)
		}

		uploads := []upload{
			{artifacts.Structured, record, "application/json"},
			{artifacts.Report, []byte(RenderReport(s)), "text/markdown"},
		}
		if artifacts.DetailedReport != "" {
			uploads = append(uploads, upload{artifacts.DetailedReport, []byte(s.Comparison.DetailedReport), "text/markdown"})
		}

		for _, u := range uploads {
			if err := rt.Artifacts.Upload(ctx, u.key, bytes.NewReader(u.body), u.contentType); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
			}
		}

		payload := map[string]any{
			"succeeded":  true,
			"structured": artifacts.Structured,
			"report":     artifacts.Report,
		}
		if artifacts.DetailedReport != "" {
			payload["detailed_report"] = artifacts.DetailedReport
		}
		s.Meta.Append(StageExport, payload)

		rt.Logger.InfoContext(
			ctx, "export stage complete",
			"structured", artifacts.Structured,
			"report", artifacts.Report,
		)

		return s, nil
	})
}
