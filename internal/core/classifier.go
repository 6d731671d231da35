package core

import (
	"strings"
	"unicode"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

// PhaseClassifier assigns a task to one of the three schedule phases.
type PhaseClassifier interface {
	ClassifyPhase(task models.Task) models.PhaseID
}

// MaterialCategorizer maps a material item name to its category.
type MaterialCategorizer interface {
	CategorizeMaterial(itemName string) models.MaterialCategory
}

// Classifier is the combined strategy the scheduler needs. Callers with a
// stricter mapping (for example an explicit phase field) can supply their own.
type Classifier interface {
	PhaseClassifier
	MaterialCategorizer
}

// Default keyword tables. Phase sets are checked in phase order and the first
// set with a hit wins.
var (
	defaultPreparationKeywords  = []string{"prep", "order", "measure", "deliver"}
	defaultExecutionKeywords    = []string{"install", "lay", "apply", "cut"}
	defaultVerificationKeywords = []string{"inspect", "verify", "clean", "final"}

	// defaultCheckpointKeywords mark tasks that count toward a phase's
	// verification progress.
	defaultCheckpointKeywords = []string{"verify", "inspect", "check", "final"}

	defaultMaterialKeywords = map[models.MaterialCategory][]string{
		models.CategoryFlooring:     {"laminate", "hardwood", "tile", "vinyl", "carpet", "plank", "flooring"},
		models.CategoryUnderlayment: {"underlayment", "underlay", "foam", "vapor", "moisture barrier", "cork"},
		models.CategoryTrim:         {"trim", "baseboard", "molding", "moulding", "quarter round", "transition", "threshold"},
		models.CategorySupplies:     {"adhesive", "glue", "nail", "screw", "spacer", "tape", "grout", "caulk", "sealant", "supplies"},
	}

	// materialCategoryOrder is the order in which material tables are tried.
	materialCategoryOrder = []models.MaterialCategory{
		models.CategoryFlooring,
		models.CategoryUnderlayment,
		models.CategoryTrim,
		models.CategorySupplies,
	}
)

// KeywordClassifier classifies by case-insensitive substring matching against
// fixed keyword tables. It is a heuristic: "lay" also matches "delay".
type KeywordClassifier struct {
	phaseKeywords      [models.PhaseCount][]string
	checkpointKeywords []string
	materialKeywords   map[models.MaterialCategory][]string
}

// NewKeywordClassifier builds a classifier from the built-in tables with any
// non-empty override in cfg replacing the corresponding set.
func NewKeywordClassifier(cfg models.KeywordConfig) *KeywordClassifier {
	kc := &KeywordClassifier{
		phaseKeywords: [models.PhaseCount][]string{
			normalizeKeywords(pick(cfg.Preparation, defaultPreparationKeywords)),
			normalizeKeywords(pick(cfg.Execution, defaultExecutionKeywords)),
			normalizeKeywords(pick(cfg.Verification, defaultVerificationKeywords)),
		},
		checkpointKeywords: normalizeKeywords(pick(cfg.Checkpoint, defaultCheckpointKeywords)),
		materialKeywords:   make(map[models.MaterialCategory][]string, len(defaultMaterialKeywords)),
	}
	for cat, kws := range defaultMaterialKeywords {
		kc.materialKeywords[cat] = normalizeKeywords(pick(cfg.Materials[cat], kws))
	}
	return kc
}

// DefaultClassifier returns a KeywordClassifier using only built-in tables.
func DefaultClassifier() *KeywordClassifier {
	return NewKeywordClassifier(models.KeywordConfig{})
}

// ClassifyPhase inspects the task title. Titles matching no keyword default to
// the Execution phase.
func (kc *KeywordClassifier) ClassifyPhase(task models.Task) models.PhaseID {
	title := strings.ToLower(task.Title)
	for _, phase := range models.AllPhases {
		if containsAny(title, kc.phaseKeywords[phase]) {
			return phase
		}
	}
	return models.PhaseExecution
}

// CategorizeMaterial returns the first category whose keyword appears in the
// item name, or CategoryOther.
func (kc *KeywordClassifier) CategorizeMaterial(itemName string) models.MaterialCategory {
	name := strings.ToLower(itemName)
	for _, cat := range materialCategoryOrder {
		if containsAny(name, kc.materialKeywords[cat]) {
			return cat
		}
	}
	return models.CategoryOther
}

// IsCheckpoint reports whether the task title names a verification checkpoint.
func (kc *KeywordClassifier) IsCheckpoint(task models.Task) bool {
	return containsAny(strings.ToLower(task.Title), kc.checkpointKeywords)
}

// CheckpointMatcher is implemented by classifiers that also recognise
// verification checkpoint tasks. Classifiers without it fall back to the
// built-in checkpoint keywords.
type CheckpointMatcher interface {
	IsCheckpoint(task models.Task) bool
}

func pick(override, fallback []string) []string {
	if len(override) > 0 {
		return override
	}
	return fallback
}

func normalizeKeywords(kws []string) []string {
	out := make([]string, 0, len(kws))
	for _, kw := range kws {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// titleWords splits a title into lowercase words on any rune that is not a
// letter or digit.
func titleWords(title string) []string {
	return strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// materialKeyword is the word a task title must contain (as a word prefix) to
// join the material's sub-timeline: the first word of the item name.
func materialKeyword(item string) string {
	words := titleWords(item)
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

// matchesMaterial reports whether some word of the title starts with the
// material keyword.
func matchesMaterial(title, keyword string) bool {
	if keyword == "" {
		return false
	}
	for _, w := range titleWords(title) {
		if strings.HasPrefix(w, keyword) {
			return true
		}
	}
	return false
}
