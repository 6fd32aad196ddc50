package services

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/repository"
)

// ReferenceSteps is the number of steps of a complete recipe.
const ReferenceSteps = 10

//go:embed reference.yaml
var defaultReference []byte

type referenceFile struct {
	Steps []models.RecipeStep `yaml:"steps"`
}

// ParseReference decodes and validates a YAML reference recipe
func ParseReference(data []byte) ([]models.RecipeStep, error) {
	var f referenceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse reference recipe: %w", err)
	}
	if err := ValidateReference(f.Steps); err != nil {
		return nil, err
	}
	return sortSteps(f.Steps), nil
}

// LoadReference reads a reference recipe file. An empty path returns the
// built-in recipe.
func LoadReference(path string) ([]models.RecipeStep, error) {
	if path == "" {
		return ParseReference(defaultReference)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseReference(data)
}

// ValidateReference checks that steps 1 to 10 are each present once with
// every field filled.
func ValidateReference(steps []models.RecipeStep) error {
	if len(steps) != ReferenceSteps {
		return ErrInvalidReference
	}
	seen := make(map[int]bool, len(steps))
	for _, s := range steps {
		if s.StepIndex < 1 || s.StepIndex > ReferenceSteps || seen[s.StepIndex] {
			return ErrInvalidReference
		}
		seen[s.StepIndex] = true
		if strings.TrimSpace(s.Ingredient) == "" || strings.TrimSpace(s.Technique) == "" || strings.TrimSpace(s.Tool) == "" {
			return ErrInvalidReference
		}
	}
	return nil
}

func sortSteps(steps []models.RecipeStep) []models.RecipeStep {
	out := append([]models.RecipeStep(nil), steps...)
	sort.Slice(out, func(i, j int) bool { return out[i].StepIndex < out[j].StepIndex })
	return out
}

// ReferenceService handles the reference recipe
type ReferenceService struct {
	log  logger.Logger
	repo repository.RecipeRepository
}

// NewReferenceService creates a new ReferenceService
func NewReferenceService(log logger.Logger, repo repository.RecipeRepository) *ReferenceService {
	return &ReferenceService{log: log, repo: repo}
}

// Seed stores steps when no reference exists yet and reports whether it did.
func (s *ReferenceService) Seed(ctx context.Context, steps []models.RecipeStep) (bool, error) {
	current, err := s.repo.GetReference(ctx)
	if err != nil {
		return false, err
	}
	if len(current) > 0 {
		return false, nil
	}
	if err := s.ReplaceReference(ctx, steps); err != nil {
		return false, err
	}
	s.log.Info("Reference recipe seeded", "steps", len(steps))
	return true, nil
}

// GetReference returns the reference recipe ordered by step
func (s *ReferenceService) GetReference(ctx context.Context) ([]models.RecipeStep, error) {
	return s.repo.GetReference(ctx)
}

// ReplaceReference swaps the whole reference recipe
func (s *ReferenceService) ReplaceReference(ctx context.Context, steps []models.RecipeStep) error {
	if err := ValidateReference(steps); err != nil {
		return err
	}
	return s.repo.ReplaceReference(ctx, sortSteps(steps))
}
