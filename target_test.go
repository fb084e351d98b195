package inspectwatch

import (
	"errors"
	"strings"
	"testing"

	"github.com/jpalmerr/inspectwatch/internal/analysis"
)

func TestNewTarget_Defaults(t *testing.T) {
	tg, err := NewTarget("evi_001")
	if err != nil {
		t.Fatalf("NewTarget() error = %v", err)
	}

	if tg.EvidenceID() != "evi_001" {
		t.Errorf("EvidenceID() = %q, want %q", tg.EvidenceID(), "evi_001")
	}
	if tg.Name() != "evi_001" {
		t.Errorf("Name() = %q, want the evidence id", tg.Name())
	}
	if len(tg.Labels()) != 0 {
		t.Errorf("Labels() = %v, want empty", tg.Labels())
	}
	if tg.AutoTrigger() {
		t.Error("AutoTrigger() = true, want false")
	}
}

func TestNewTarget_WithOptions(t *testing.T) {
	tg, err := NewTarget("evi_001",
		WithName("Level 2 stairwell"),
		WithLabels("project", "prj_001", "floor", "2"),
		WithAutoTrigger(),
	)
	if err != nil {
		t.Fatalf("NewTarget() error = %v", err)
	}

	if tg.Name() != "Level 2 stairwell" {
		t.Errorf("Name() = %q, want %q", tg.Name(), "Level 2 stairwell")
	}
	labels := tg.Labels()
	if labels["project"] != "prj_001" || labels["floor"] != "2" {
		t.Errorf("Labels() = %v", labels)
	}
	if !tg.AutoTrigger() {
		t.Error("AutoTrigger() = false, want true")
	}
}

func TestNewTarget_InvalidID(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"slash", "evi/001"},
		{"space", "evi 001"},
		{"too long", strings.Repeat("x", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTarget(tt.id)
			if !errors.Is(err, analysis.ErrInvalidEvidenceID) {
				t.Errorf("NewTarget(%q) error = %v, want ErrInvalidEvidenceID", tt.id, err)
			}
		})
	}
}

func TestNewTarget_OptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  TargetOption
	}{
		{"blank name", WithName("   ")},
		{"odd labels", WithLabels("project")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTarget("evi_001", tt.opt); err == nil {
				t.Error("NewTarget() expected error, got nil")
			}
		})
	}
}

func TestTarget_LabelsAreCopies(t *testing.T) {
	tg := mustTarget(t, "evi_001", WithLabels("env", "prod"))

	labels := tg.Labels()
	labels["env"] = "modified"
	labels["new"] = "value"

	if tg.Labels()["env"] != "prod" {
		t.Errorf("mutation affected target: Labels[env] = %q", tg.Labels()["env"])
	}
	if _, ok := tg.Labels()["new"]; ok {
		t.Error("mutation added a key to the target")
	}
}
