package models

// Preset is a pre-filled challenge draft offered on the creation screen.
// Presets are loaded from YAML files at startup and are read-only.
type Preset struct {
	ID           string      `yaml:"id" json:"id"`
	Title        string      `yaml:"title" json:"title"`
	Description  string      `yaml:"description" json:"description"`
	Rules        string      `yaml:"rules" json:"rules,omitempty"`
	DurationDays int         `yaml:"duration_days" json:"duration_days"`
	ReportMode   ReportMode  `yaml:"report_mode" json:"report_mode"`
	MetricName   string      `yaml:"metric_name" json:"metric_name,omitempty"`
	HasGoal      bool        `yaml:"has_goal" json:"has_goal"`
	GoalValue    float64     `yaml:"goal_value" json:"goal_value,omitempty"`
	HasLimit     bool        `yaml:"has_limit" json:"has_limit"`
	LimitPerDay  int         `yaml:"limit_per_day" json:"limit_per_day,omitempty"`
	HasProof     bool        `yaml:"has_proof" json:"has_proof"`
	ProofTypes   []ProofType `yaml:"proof_types" json:"proof_types,omitempty"`
}
