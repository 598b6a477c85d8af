package config

import "time"

// AutonomyLevel is the Executor's gate mode (spec.md §4.4, §6).
type AutonomyLevel string

// Recognized autonomy levels, from most to least conservative.
const (
	AutonomyObserve   AutonomyLevel = "observe"
	AutonomySuggest   AutonomyLevel = "suggest"
	AutonomyAutoSafe  AutonomyLevel = "auto_safe"
	AutonomyAutoFull  AutonomyLevel = "auto_full"
)

// Valid reports whether a is one of the four recognized levels.
func (a AutonomyLevel) Valid() bool {
	switch a {
	case AutonomyObserve, AutonomySuggest, AutonomyAutoSafe, AutonomyAutoFull:
		return true
	default:
		return false
	}
}

// LLMTierConfig configures one of the three reasoner tiers.
type LLMTierConfig struct {
	Model      string        `yaml:"model"`
	BackendURL string        `yaml:"backend_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// TriggerConfig configures the Trigger Loop (spec.md §4.1, §6).
type TriggerConfig struct {
	IntervalSeconds   int              `yaml:"trigger_interval_s" validate:"min=1"`
	DebounceWindow    time.Duration    `yaml:"debounce_window_s"`
	UseTriggerModel   bool             `yaml:"use_trigger_model"`
	ClassifierMaxLines int             `yaml:"classifier_max_lines"`
	CriticalServices  []string         `yaml:"critical_services"`
	Thresholds        ThresholdsConfig `yaml:"thresholds"`
	LogRules          []LogRule        `yaml:"log_rules"`
}

// ThresholdsConfig holds the metric-breach thresholds from spec.md §4.1.
type ThresholdsConfig struct {
	CPUPercent    float64 `yaml:"cpu_percent"`
	MemoryPercent float64 `yaml:"memory_percent"`
	DiskPercent   float64 `yaml:"disk_percent"`
	LoadPerCore   float64 `yaml:"load_per_core"`
}

// LogRule is one ordered regex rule used by the journal log scan.
type LogRule struct {
	Name           string         `yaml:"name"`
	Pattern        string         `yaml:"pattern" validate:"required"`
	Severity       string         `yaml:"severity" validate:"required,oneof=info warning critical"`
	SubjectTemplate string        `yaml:"subject_template"`
}

// ReviewConfig configures the Review Reasoner (spec.md §4.3).
type ReviewConfig struct {
	IntervalSeconds   int           `yaml:"review_interval_s" validate:"min=1"`
	ContextBudget     int           `yaml:"context_budget_tokens" validate:"min=1"`
	EscalationCooldown time.Duration `yaml:"escalation_cooldown_s"`
}

// MetaConfig configures the Meta Reasoner (spec.md §4.3).
type MetaConfig struct {
	ContextBudget int `yaml:"context_budget_tokens" validate:"min=1"`
}

// ExecutorConfig configures the Executor + approval queue (spec.md §4.4).
type ExecutorConfig struct {
	AutonomyLevel     AutonomyLevel `yaml:"autonomy_level"`
	ProtectedServices []string      `yaml:"protected_services"`
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	QueueDepthLimit   int           `yaml:"queue_depth_limit"`
	QueueDir          string        `yaml:"queue_dir"`
}

// RetentionConfig configures the Metrics Store eviction horizon
// (spec.md §6 metrics_retention_days), grounded on the teacher's
// pkg/cleanup retention loop.
type RetentionConfig struct {
	MetricsRetentionDays int           `yaml:"metrics_retention_days" validate:"min=1"`
	CleanupInterval      time.Duration `yaml:"cleanup_interval"`
}

// DatabaseConfig configures the Postgres-backed store adapters.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxConns        int32  `yaml:"max_conns"`
	MigrationsPath  string `yaml:"migrations_path"`
}

// NotifyConfig configures the notification sink fan-out.
type NotifyConfig struct {
	SlackEnabled  bool   `yaml:"slack_enabled"`
	SlackTokenEnv string `yaml:"slack_token_env"`
	SlackChannel  string `yaml:"slack_channel"`
}

// APIConfig configures the dashboard HTTP/WebSocket surface (SPEC_FULL.md
// §4.9/§4.12).
type APIConfig struct {
	Addr         string `yaml:"addr"`
	DashboardURL string `yaml:"dashboard_url"`
}

// ContextWindowConfig configures the rolling buffer (spec.md §3, §4.2).
type ContextWindowConfig struct {
	BudgetTokens    int           `yaml:"context_budget_tokens" validate:"min=1"`
	SoftAgeThreshold time.Duration `yaml:"soft_age_threshold"`
	SnapshotPath    string        `yaml:"snapshot_path"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// Config is the umbrella configuration object, grounded on the teacher's
// pkg/config.Config: a single immutable record returned by Initialize()
// and threaded through the Orchestrator.
type Config struct {
	configDir string

	Host    string `yaml:"host"`
	Trigger TriggerConfig       `yaml:"trigger"`
	Review  ReviewConfig        `yaml:"review"`
	Meta    MetaConfig          `yaml:"meta"`
	Executor ExecutorConfig     `yaml:"executor"`
	Retention RetentionConfig   `yaml:"retention"`
	Database  DatabaseConfig    `yaml:"database"`
	Notify    NotifyConfig      `yaml:"notify"`
	API       APIConfig         `yaml:"api"`
	ContextWindow ContextWindowConfig `yaml:"context_window"`

	TriggerLLM LLMTierConfig `yaml:"trigger_llm"`
	ReviewLLM  LLMTierConfig `yaml:"review_llm"`
	MetaLLM    LLMTierConfig `yaml:"meta_llm"`
}

// ConfigDir returns the directory Config was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// Stats summarizes the loaded configuration for the health endpoint,
// mirroring the teacher's ConfigStats/Stats() pattern.
type Stats struct {
	LogRules         int
	CriticalServices int
	ProtectedServices int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() Stats {
	return Stats{
		LogRules:          len(c.Trigger.LogRules),
		CriticalServices:  len(c.Trigger.CriticalServices),
		ProtectedServices: len(c.Executor.ProtectedServices),
	}
}
