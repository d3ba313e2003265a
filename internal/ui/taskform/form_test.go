package taskform

import (
	"slices"
	"testing"
	"time"

	"github.com/nhle/tasksync/internal/model"
)

func TestCreatePatch(t *testing.T) {
	f := NewCreate()
	f.fb.title = "  Buy milk "
	f.fb.priority = "high"
	f.fb.dueDate = "2024-05-01"
	f.fb.tags = "home, errands, home,"

	patch, err := f.Patch()
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if *patch.Title != "Buy milk" || *patch.Priority != model.PriorityHigh {
		t.Errorf("patch = %+v", patch)
	}
	if patch.Description != nil {
		t.Error("blank description should be omitted")
	}
	if patch.DueDate == nil || patch.DueDate.Format(dateLayout) != "2024-05-01" {
		t.Errorf("DueDate = %v", patch.DueDate)
	}
	if !slices.Equal(patch.Tags, []string{"home", "errands"}) {
		t.Errorf("Tags = %v", patch.Tags)
	}
}

func TestPatchValidation(t *testing.T) {
	tt := []struct {
		name  string
		title string
		prio  string
		due   string
	}{
		{name: "blank title", title: "  ", prio: "low"},
		{name: "bad priority", title: "x", prio: "urgent"},
		{name: "bad date", title: "x", prio: "low", due: "tomorrow"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			f := NewCreate()
			f.fb.title, f.fb.priority, f.fb.dueDate = tc.title, tc.prio, tc.due
			if _, err := f.Patch(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEditPatchCarriesOnlyChanges(t *testing.T) {
	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	task := model.Task{
		ID:       5,
		Title:    "Write report",
		Priority: model.PriorityLow,
		DueDate:  &due,
		Tags:     []string{"work"},
	}

	f := NewEdit(task)
	unchanged, err := f.Patch()
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if !unchanged.Empty() {
		t.Errorf("untouched form produced %+v", unchanged)
	}

	f.fb.priority = "high"
	f.fb.tags = ""
	patch, err := f.Patch()
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if patch.Title != nil || patch.DueDate != nil || patch.Description != nil {
		t.Errorf("unchanged fields leaked into %+v", patch)
	}
	if patch.Priority == nil || *patch.Priority != model.PriorityHigh {
		t.Errorf("Priority = %v", patch.Priority)
	}
	if patch.Tags == nil || len(patch.Tags) != 0 {
		t.Errorf("cleared tags should be an empty list, got %#v", patch.Tags)
	}
}
