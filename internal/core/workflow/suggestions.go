package workflow

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

//go:embed suggestions.yaml
var defaultCatalogYAML []byte

var defaultCatalog = mustParseCatalog(defaultCatalogYAML)

type catalogFile struct {
	Steps map[string][]catalogEntry `yaml:"steps"`
}

type catalogEntry struct {
	Action                string   `yaml:"action"`
	Description           string   `yaml:"description"`
	Priority              string   `yaml:"priority"`
	RequiredDocumentTypes []string `yaml:"required_document_types"`
	Confidence            float64  `yaml:"confidence"`
	WhenPresent           []string `yaml:"when_present"`
	WhenAbsent            []string `yaml:"when_absent"`
}

type entry struct {
	suggestion  domain.Suggestion
	whenPresent []domain.DocumentType
	whenAbsent  []domain.DocumentType
}

func (e entry) applies(accumulated domain.DocumentTypeSet) bool {
	return accumulated.HasAll(e.whenPresent...) && !accumulated.HasAny(e.whenAbsent...)
}

// Catalog maps steps to their candidate suggestions. It is read-only after parsing.
type Catalog struct {
	byStep map[domain.StepID][]entry
}

// ParseCatalog decodes and validates a YAML suggestion catalog.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode suggestion catalog: %w", err)
	}
	if len(file.Steps) == 0 {
		return nil, errors.New("suggestion catalog has no steps")
	}

	byStep := make(map[domain.StepID][]entry, len(file.Steps))
	for rawStep, entries := range file.Steps {
		stepID := domain.StepID(rawStep)
		if _, ok := domain.LookupStep(stepID); !ok {
			return nil, fmt.Errorf("suggestion catalog: unknown step %q", rawStep)
		}
		parsed := make([]entry, 0, len(entries))
		for i, ce := range entries {
			e, err := ce.toEntry()
			if err != nil {
				return nil, fmt.Errorf("suggestion catalog: step %s entry %d: %w", rawStep, i, err)
			}
			parsed = append(parsed, e)
		}
		byStep[stepID] = parsed
	}
	return &Catalog{byStep: byStep}, nil
}

func mustParseCatalog(raw []byte) *Catalog {
	c, err := ParseCatalog(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (ce catalogEntry) toEntry() (entry, error) {
	if ce.Action == "" {
		return entry{}, errors.New("action is required")
	}
	priority := domain.Priority(ce.Priority)
	switch priority {
	case domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow:
	default:
		return entry{}, fmt.Errorf("invalid priority %q", ce.Priority)
	}
	if ce.Confidence < 0 || ce.Confidence > 1 {
		return entry{}, fmt.Errorf("confidence %v outside [0,1]", ce.Confidence)
	}
	required, err := parseTypes(ce.RequiredDocumentTypes)
	if err != nil {
		return entry{}, err
	}
	present, err := parseTypes(ce.WhenPresent)
	if err != nil {
		return entry{}, err
	}
	absent, err := parseTypes(ce.WhenAbsent)
	if err != nil {
		return entry{}, err
	}
	return entry{
		suggestion: domain.Suggestion{
			Action:                ce.Action,
			Description:           ce.Description,
			Priority:              priority,
			RequiredDocumentTypes: required,
			Confidence:            ce.Confidence,
		},
		whenPresent: present,
		whenAbsent:  absent,
	}, nil
}

func parseTypes(raw []string) ([]domain.DocumentType, error) {
	out := make([]domain.DocumentType, 0, len(raw))
	for _, r := range raw {
		t := domain.ParseDocumentType(r)
		if !t.Known() {
			return nil, fmt.Errorf("unknown document type %q", r)
		}
		out = append(out, t)
	}
	return out, nil
}

// Suggest returns a fresh list of next actions for step given the accumulated document types.
func (c *Catalog) Suggest(step domain.StepID, accumulated domain.DocumentTypeSet) []domain.Suggestion {
	if accumulated == nil {
		accumulated = domain.NewDocumentTypeSet()
	}
	out := make([]domain.Suggestion, 0, len(c.byStep[step]))
	for _, e := range c.byStep[step] {
		if !e.applies(accumulated) {
			continue
		}
		s := e.suggestion
		s.RequiredDocumentTypes = slices.Clone(s.RequiredDocumentTypes)
		out = append(out, s)
	}
	return out
}

// Suggest uses the embedded default catalog.
func Suggest(step domain.StepID, accumulated domain.DocumentTypeSet) []domain.Suggestion {
	return defaultCatalog.Suggest(step, accumulated)
}
