package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/ldaa/internal/index"
	"github.com/JaimeStill/ldaa/internal/runs"
	"github.com/JaimeStill/ldaa/internal/workflow"
	"github.com/JaimeStill/ldaa/pkg/pagination"
)

var (
	listStatus string
	listPage   int
	listSize   int

	resumeType     string
	resumePayload  string
	resumeReviewer string

	searchK int
)

func init() {
	rootCmd.AddCommand(runCmd, statusCmd, listCmd, resumeCmd, cancelCmd, searchCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status, comma-separated (running,suspended,completed,failed)")
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().IntVar(&listSize, "page-size", 20, "Results per page")

	resumeCmd.Flags().StringVar(&resumeType, "type", "", "Response type: accept, ignore, edit, respond (required)")
	resumeCmd.Flags().StringVar(&resumePayload, "payload", "", "Edit payload as a JSON object, or reviewer text for respond")
	resumeCmd.Flags().StringVar(&resumeReviewer, "reviewer", os.Getenv("USER"), "Reviewer name (replaced by the token subject when auth is enabled)")
	_ = resumeCmd.MarkFlagRequired("type")

	searchCmd.Flags().IntVarP(&searchK, "k", "k", 5, "Number of results")
}

var runCmd = &cobra.Command{
	Use:   "run <document-a> <document-b>",
	Short: "Submit two documents for comparative analysis",
	Long: `Upload two documents and start a run. The run executes in the
background; use status to follow it.

Examples:
  ldaa run act.pdf framework.md
  ldaa run --server http://ldaa.internal/api a.pdf b.pdf --json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var run workflow.Run
		if err := newClient(serverURL, token).submit(cmd.Context(), args[0], args[1], &run); err != nil {
			return err
		}
		return printRun(&run)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the status of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var run workflow.Run
		if err := newClient(serverURL, token).get(cmd.Context(), "/runs/"+url.PathEscape(args[0]), nil, &run); err != nil {
			return err
		}
		return printRun(&run)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		q.Set("page", strconv.Itoa(listPage))
		q.Set("page_size", strconv.Itoa(listSize))
		if listStatus != "" {
			q.Set("status", listStatus)
		}

		var result pagination.PageResult[runs.Summary]
		if err := newClient(serverURL, token).get(cmd.Context(), "/runs", q, &result); err != nil {
			return err
		}

		if outputJSON {
			return printJSON(result)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSTAGE\tCHECKPOINTS\tCREATED")
		for _, r := range result.Data {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Status, r.Stage, r.Checkpoints, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\npage %d of %d (%d runs)\n", result.Page, result.TotalPages, result.Total)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Answer the review gate of a suspended run",
	Long: `Submit a human review response and continue the run.

Examples:
  # Accept every flagged segment
  ldaa resume 3f2c... --type accept

  # Replace the comparison verdict
  ldaa resume 3f2c... --type edit --payload '{"comparison_verdict":{"verdict":"accept","confidence":0.9,"rationale":"checked"}}'

  # Record a reviewer note
  ldaa resume 3f2c... --type respond --payload "Section 4 needs legal review"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := reviewPayload(workflow.ResponseType(resumeType), resumePayload)
		if err != nil {
			return err
		}

		body := workflow.ReviewResponse{
			Type:     workflow.ResponseType(resumeType),
			Payload:  payload,
			Reviewer: resumeReviewer,
		}

		var run workflow.Run
		if err := newClient(serverURL, token).postJSON(cmd.Context(), "/runs/"+url.PathEscape(args[0])+"/resume", body, &run); err != nil {
			return err
		}
		return printRun(&run)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Cancel a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var run workflow.Run
		if err := newClient(serverURL, token).postJSON(cmd.Context(), "/runs/"+url.PathEscape(args[0])+"/cancel", nil, &run); err != nil {
			return err
		}
		return printRun(&run)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <run-id> <query>",
	Short: "Search the indexed segments of a run",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		q.Set("q", strings.Join(args[1:], " "))
		q.Set("k", strconv.Itoa(searchK))

		var hits []index.Hit
		if err := newClient(serverURL, token).get(cmd.Context(), "/runs/"+url.PathEscape(args[0])+"/search", q, &hits); err != nil {
			return err
		}

		if outputJSON {
			return printJSON(hits)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SIMILARITY\tSEGMENT\tDOCUMENT\tCONTENT")
		for _, h := range hits {
			fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", h.Similarity, h.SegmentID, h.Document, truncate(h.Content, 80))
		}
		return w.Flush()
	},
}

// reviewPayload converts the --payload flag into the JSON payload of a
// review response. Respond payloads are plain text encoded as a JSON string.
func reviewPayload(kind workflow.ResponseType, raw string) (json.RawMessage, error) {
	if raw == "" {
		return nil, nil
	}

	switch kind {
	case workflow.ResponseRespond:
		var s string
		if json.Unmarshal([]byte(raw), &s) == nil {
			return json.RawMessage(raw), nil
		}
		data, err := json.Marshal(raw)
		return data, err
	case workflow.ResponseEdit:
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("edit payload must be a JSON object")
		}
		return json.RawMessage(raw), nil
	default:
		return nil, fmt.Errorf("--payload is only used with edit and respond")
	}
}

func printRun(run *workflow.Run) error {
	if outputJSON {
		return printJSON(run)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	fmt.Fprintf(w, "Status:\t%s\n", run.Status)
	fmt.Fprintf(w, "Stage:\t%s\n", run.Stage)
	if run.LastCompleted != "" {
		fmt.Fprintf(w, "Last completed:\t%s\n", run.LastCompleted)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error:\t%s\n", run.Error)
	}
	if run.Review != nil {
		fmt.Fprintf(w, "Review:\t%s (%d items, escalated=%v)\n", run.Review.Kind, len(run.Review.Items), run.Review.Escalated)
		fmt.Fprintf(w, "Editable:\t%s\n", strings.Join(run.Review.Editable, ", "))
	}
	if run.Artifacts != nil {
		fmt.Fprintf(w, "Report:\t%s\n", run.Artifacts.Report)
		fmt.Fprintf(w, "Structured:\t%s\n", run.Artifacts.Structured)
	}
	return w.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
