package presets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/wizard"
)

// Loader manages loading and caching of challenge presets
type Loader struct {
	mu      sync.RWMutex
	presets map[string]*models.Preset
}

// NewLoader creates a new preset loader
func NewLoader() *Loader {
	return &Loader{presets: make(map[string]*models.Preset)}
}

// LoadFromDir loads all YAML presets from a directory
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading presets from directory", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load preset", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("presets loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single preset from a YAML file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var preset models.Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if preset.ID == "" {
		base := filepath.Base(path)
		preset.ID = base[:len(base)-len(filepath.Ext(base))]
	}
	if preset.Title == "" {
		return fmt.Errorf("preset title is required")
	}
	if preset.DurationDays <= 0 {
		return fmt.Errorf("preset duration_days must be positive")
	}
	if preset.ReportMode == "" {
		preset.ReportMode = models.ReportSimple
	}

	// Simple presets carry the fixed one-per-day limit
	if preset.ReportMode == models.ReportSimple {
		preset.HasLimit = true
		preset.LimitPerDay = 1
		preset.HasGoal = false
		preset.HasProof = false
		preset.ProofTypes = nil
	}

	l.mu.Lock()
	l.presets[preset.ID] = &preset
	l.mu.Unlock()

	slog.Info("preset loaded", "id", preset.ID, "title", preset.Title)
	return nil
}

// Get retrieves a preset by id
func (l *Loader) Get(id string) *models.Preset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.presets[id]
}

// List returns all loaded presets sorted by id
func (l *Loader) List() []*models.Preset {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Preset, 0, len(l.presets))
	for _, p := range l.presets {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Apply copies the preset fields onto a wizard draft. The entry type and
// schedule stay untouched; the preset only pre-fills content and report
// settings.
func Apply(p *models.Preset, d *wizard.Draft) {
	d.Title = p.Title
	d.Description = p.Description
	d.Rules = p.Rules
	d.DurationDays = p.DurationDays
	d.ReportMode = p.ReportMode
	d.MetricName = p.MetricName
	d.HasGoal = p.HasGoal
	d.GoalValue = p.GoalValue
	d.HasLimit = p.HasLimit
	d.LimitPerDay = p.LimitPerDay
	d.HasProof = p.HasProof
	d.ProofTypes = p.ProofTypes
}
