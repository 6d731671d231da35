package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/buildphase/pkg/models"
)

// refNow is the fixed "today" used across engine tests.
var refNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

// day returns a pointer to the calendar date offset days from refNow.
func day(offset int) *time.Time {
	d := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	return &d
}

func task(id, title string, status models.TaskStatus, due *time.Time) models.Task {
	return models.Task{
		ID:       id,
		Title:    title,
		Status:   status,
		Priority: models.PriorityMedium,
		DueDate:  due,
	}
}

func laminateMaterials() []models.Material {
	return []models.Material{
		{Item: "Laminate Flooring Planks", Quantity: 42, Unit: "m2"},
		{Item: "Foam Underlayment", Quantity: 45, Unit: "m2"},
		{Item: "Baseboard Trim", Quantity: 30, Unit: "m"},
		{Item: "Spacers", Quantity: 1, Unit: "bag"},
	}
}

func findSubTimeline(t *testing.T, phase models.Phase, cat models.MaterialCategory) models.SubTimeline {
	t.Helper()
	for _, st := range phase.SubTimelines {
		if st.Category == cat {
			return st
		}
	}
	t.Fatalf("phase %s has no %s sub-timeline", phase.Name, cat)
	return models.SubTimeline{}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
