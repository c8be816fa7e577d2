package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RenderReport produces the Markdown narrative report of a run.
func RenderReport(s *RunState) string {
	var sb strings.Builder

	sb.WriteString("# Document Analysis Report\n\n")
	fmt.Fprintf(&sb, "Run: `%s`\n\n", s.RunID)

	sb.WriteString("## Input Files\n\n")
	for _, id := range documents {
		doc := s.Document(id)
		path := doc.Path
		if path == "" {
			path = "(none)"
		}
		fmt.Fprintf(&sb, "- Document %s: `%s`", id, path)
		if doc.Pages > 0 {
			fmt.Fprintf(&sb, " (%d pages)", doc.Pages)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Segmentation and Analysis\n")
	for _, id := range documents {
		writeDocument(&sb, id, s.Document(id))
	}

	sb.WriteString("\n## Comparison\n\n")
	writeComparison(&sb, s.Comparison)

	sb.WriteString("\n## Final Decision\n\n")
	writeDecision(&sb, s)

	sb.WriteString("\n## Meta-Log\n\n")
	meta, err := json.MarshalIndent(s.Meta, "", "  ")
	if err != nil {
		fmt.Fprintf(&sb, "meta-log unavailable: %v\n", err)
	} else {
		sb.WriteString("```json\n")
		sb.Write(meta)
		sb.WriteString("\n```\n")
	}

	return sb.String()
}

func writeDocument(sb *strings.Builder, id DocumentID, doc *DocumentState) {
	fmt.Fprintf(sb, "\n### Document %s\n", id)

	if len(doc.Segments) == 0 {
		sb.WriteString("\nNo segments.\n")
		return
	}

	for i, seg := range doc.Segments {
		fmt.Fprintf(sb, "\n#### Segment %d (%s, %s)\n\n", i+1, seg.ID, seg.Kind)
		for line := range strings.SplitSeq(seg.Text, "\n") {
			fmt.Fprintf(sb, "> %s\n", line)
		}
		sb.WriteString("\n")

		if i < len(doc.Analyses) {
			a := doc.Analyses[i]
			fmt.Fprintf(sb, "- Summary: %s\n", a.Summary)
			fmt.Fprintf(sb, "- Category: %s\n", a.Category)
			fmt.Fprintf(sb, "- Strengths: %s\n", strings.Join(a.Strengths, "; "))
			fmt.Fprintf(sb, "- Weaknesses: %s\n", strings.Join(a.Weaknesses, "; "))
			fmt.Fprintf(sb, "- Confidence: %.2f\n", a.Confidence)
			fmt.Fprintf(sb, "- Rationale: %s\n", a.Rationale)
		}

		if i < len(doc.Verdicts) {
			v := doc.Verdicts[i]
			fmt.Fprintf(sb, "- Verdict: %s (%.2f)\n", v.Verdict, v.Confidence)
			fmt.Fprintf(sb, "- Reflection: %s\n", v.Rationale)
		}
	}
}

func writeComparison(sb *strings.Builder, c *ComparisonResult) {
	if c == nil {
		sb.WriteString("No comparison.\n")
		return
	}

	if c.NarrativeSummary != "" {
		fmt.Fprintf(sb, "%s\n\n", c.NarrativeSummary)
	}

	writeFindings(sb, "Similarities", c.Similarities)
	writeFindings(sb, "Differences", c.Differences)

	sb.WriteString("### Focus Areas\n\n")
	for _, id := range documents {
		fmt.Fprintf(sb, "- Document %s: %s\n", id, strings.Join(c.FocusAreas[id], ", "))
	}

	sb.WriteString("\n### Gaps\n\n")
	if len(c.Gaps) == 0 {
		sb.WriteString("None identified.\n")
	}
	for _, gap := range c.Gaps {
		fmt.Fprintf(sb, "- %s\n", gap)
	}

	fmt.Fprintf(sb, "\nConfidence: %.2f\n\n", c.Confidence)
	fmt.Fprintf(sb, "Rationale: %s\n", c.Rationale)
}

func writeFindings(sb *strings.Builder, title string, findings []Finding) {
	fmt.Fprintf(sb, "### %s\n\n", title)
	if len(findings) == 0 {
		sb.WriteString("None identified.\n\n")
		return
	}
	for _, f := range findings {
		fmt.Fprintf(sb, "- **%s**: %s\n", f.Topic, f.Explanation)
	}
	sb.WriteString("\n")
}

func writeDecision(sb *strings.Builder, s *RunState) {
	if v := s.ComparisonVerdict; v != nil {
		fmt.Fprintf(sb, "- Verdict: %s (%.2f)\n", v.Verdict, v.Confidence)
		fmt.Fprintf(sb, "- Rationale: %s\n", v.Rationale)
	} else {
		sb.WriteString("- Verdict: none\n")
	}

	if r := s.Review; r != nil {
		fmt.Fprintf(sb, "- Human review (%s): %s\n", r.Kind, r.Result)
		if r.Note != "" {
			fmt.Fprintf(sb, "- Reviewer note: %s\n", r.Note)
		}
	}
}
