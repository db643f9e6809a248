package presets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/wizard"
)

func writePreset(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write preset file: %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	writePreset(t, dir, "plank.yaml", `
id: plank
title: "30-Day Plank"
description: "Plank every day"
duration_days: 30
report_mode: result
metric_name: seconds
has_goal: true
goal_value: 3600
has_limit: true
limit_per_day: 1
`)
	writePreset(t, dir, "water.yml", `
title: "Drink Water"
description: "Two liters a day"
duration_days: 14
report_mode: simple
`)
	writePreset(t, dir, "broken.yaml", `
description: "no title here"
duration_days: 7
`)

	loader := NewLoader()
	if err := loader.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	presets := loader.List()
	if len(presets) != 2 {
		t.Fatalf("expected 2 presets, broken one skipped, got %d", len(presets))
	}

	plank := loader.Get("plank")
	if plank == nil {
		t.Fatal("plank preset not found")
	}
	if plank.MetricName != "seconds" || plank.GoalValue != 3600 {
		t.Errorf("unexpected plank preset: %+v", plank)
	}

	// Missing id falls back to the file name
	water := loader.Get("water")
	if water == nil {
		t.Fatal("water preset not found under its file name")
	}
	if water.ReportMode != models.ReportSimple {
		t.Errorf("expected simple mode, got %q", water.ReportMode)
	}
	if !water.HasLimit || water.LimitPerDay != 1 {
		t.Errorf("simple preset must carry the one-per-day limit, got %+v", water)
	}
}

func TestSimplePresetDropsGoalAndProof(t *testing.T) {
	dir := t.TempDir()
	writePreset(t, dir, "sloppy.yaml", `
id: sloppy
title: "Sloppy Preset"
description: "Simple mode with forbidden extras"
duration_days: 7
report_mode: simple
has_goal: true
goal_value: 10
has_proof: true
proof_types: [photo]
`)

	loader := NewLoader()
	if err := loader.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	p := loader.Get("sloppy")
	if p == nil {
		t.Fatal("preset not found")
	}
	if p.HasGoal || p.HasProof || len(p.ProofTypes) != 0 {
		t.Errorf("simple preset must not keep goal or proof, got %+v", p)
	}
}

func TestApplyFillsDraft(t *testing.T) {
	p := &models.Preset{
		ID:           "plank",
		Title:        "30-Day Plank",
		Description:  "Plank every day",
		DurationDays: 30,
		ReportMode:   models.ReportResult,
		MetricName:   "seconds",
		HasGoal:      true,
		GoalValue:    3600,
		HasLimit:     true,
		LimitPerDay:  1,
	}

	w := wizard.New()
	if err := w.ChooseEntryType(models.EntryFree); err != nil {
		t.Fatalf("ChooseEntryType failed: %v", err)
	}

	w.UpdateDraft(func(d *wizard.Draft) { Apply(p, d) })

	if err := w.Advance(); err != nil {
		t.Fatalf("a preset-filled draft must pass the settings gate: %v", err)
	}
	_, d := w.Snapshot()
	if d.Title != "30-Day Plank" || d.MetricName != "seconds" || d.GoalValue != 3600 {
		t.Errorf("preset fields not applied: %+v", d)
	}
}
