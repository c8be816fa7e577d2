// Package runs exposes the analysis workflow as a domain system: run
// submission with document upload, PostgreSQL checkpoint persistence,
// background execution and recovery, review resumption and segment search.
package runs

import (
	"time"

	"github.com/JaimeStill/ldaa/internal/workflow"
)

// Summary is the row kept for every run in the runs table.
type Summary struct {
	ID            string             `json:"id"`
	DocumentA     string             `json:"document_a"`
	DocumentB     string             `json:"document_b"`
	Stage         workflow.StageName `json:"stage"`
	LastCompleted workflow.StageName `json:"last_completed,omitempty"`
	Status        workflow.Status    `json:"status"`
	Error         string             `json:"error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Checkpoints   int                `json:"checkpoints"`
}

// Document is an uploaded source document.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmitCommand carries the two documents of a new run.
type SubmitCommand struct {
	DocumentA Document
	DocumentB Document
}
