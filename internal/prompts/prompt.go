// Package prompts manages the instructions sent to the judgment service.
// Each judged workflow stage has hardcoded instruction variants and a fixed
// response specification; operators may store named overrides and activate
// at most one per stage.
package prompts

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prompt is a stored instruction override for one workflow stage.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Stage        Stage     `json:"stage"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Command carries the writable fields of a prompt override.
type Command struct {
	Name         string  `json:"name"`
	Stage        Stage   `json:"stage"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}

// Resolution describes what a stage will send to the judgment service.
// Override is nil when the stage falls back to its default variants.
type Resolution struct {
	Stage        Stage    `json:"stage"`
	Instructions string   `json:"instructions"`
	Spec         string   `json:"spec"`
	Override     *Prompt  `json:"override"`
	Variants     []string `json:"variants"`
}

func (c Command) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	if _, err := ParseStage(string(c.Stage)); err != nil {
		return err
	}
	if strings.TrimSpace(c.Instructions) == "" {
		return ErrEmpty
	}
	return nil
}
