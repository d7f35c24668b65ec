package discussion

import (
	"fmt"
	"strings"

	"symposium/internal/domain"
)

const (
	// MinModels is the minimum number of distinct model identifiers a
	// discussion must specify (spec §3: "size >= 2").
	MinModels = 2

	// MinRounds and MaxRounds bound a discussion's configured round count.
	MinRounds = 1
	MaxRounds = 20
)

// CreateRequest is the validated input to Orchestrator.Create.
type CreateRequest struct {
	Topic        string
	Models       []string
	SummaryModel string
	MaxRounds    int
}

// Validate enforces the invariants spec §4.6 "Create" requires before a
// Discussion is constructed. Errors wrap domain.ErrValidation so callers can
// use errors.Is to map to a 400 response.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("%w: topic must not be empty", domain.ErrValidation)
	}
	if len(r.Models) < MinModels {
		return fmt.Errorf("%w: at least %d models are required, got %d", domain.ErrValidation, MinModels, len(r.Models))
	}
	for i, m := range r.Models {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%w: models[%d] must not be empty", domain.ErrValidation, i)
		}
	}
	if strings.TrimSpace(r.SummaryModel) == "" {
		return fmt.Errorf("%w: summaryModel must not be empty", domain.ErrValidation)
	}
	if r.MaxRounds < MinRounds || r.MaxRounds > MaxRounds {
		return fmt.Errorf("%w: maxRounds must be between %d and %d, got %d", domain.ErrValidation, MinRounds, MaxRounds, r.MaxRounds)
	}
	return nil
}
