package config

import "time"

// protectedServices is the hard-coded set from spec.md §4.4 that the
// Executor's policy check always protects, regardless of configuration.
// Configured protected_services is additive to, never a replacement for,
// this set.
var protectedServices = []string{
	"sshd", "systemd-networkd", "NetworkManager", "systemd", "dbus", "systemd-logind",
}

// ProtectedServices returns the hard-coded protected set (spec.md §4.4).
func ProtectedServices() []string {
	out := make([]string, len(protectedServices))
	copy(out, protectedServices)
	return out
}

// defaultLogRules ships a small, sensible starting rule set; operators
// extend it via YAML.
func defaultLogRules() []LogRule {
	return []LogRule{
		{Name: "oom_kill", Pattern: `(?i)out of memory|oom-kill`, Severity: "critical", SubjectTemplate: "oom"},
		{Name: "segfault", Pattern: `(?i)segfault`, Severity: "warning", SubjectTemplate: "segfault"},
		{Name: "disk_error", Pattern: `(?i)I/O error|ata\d+.*error`, Severity: "critical", SubjectTemplate: "disk"},
		{Name: "service_failed", Pattern: `(?i)failed to start|unit .* failed`, Severity: "warning", SubjectTemplate: "service"},
	}
}

// withDefaults fills in zero-valued fields on a freshly-loaded Config
// with the system's defaults, the way the teacher's loader applies
// built-in defaults to unset YAML fields.
func withDefaults(c *Config) {
	if c.Trigger.IntervalSeconds == 0 {
		c.Trigger.IntervalSeconds = 30
	}
	if c.Trigger.DebounceWindow == 0 {
		c.Trigger.DebounceWindow = 5 * time.Minute
	}
	if c.Trigger.ClassifierMaxLines == 0 {
		c.Trigger.ClassifierMaxLines = 10
	}
	if len(c.Trigger.LogRules) == 0 {
		c.Trigger.LogRules = defaultLogRules()
	}
	if c.Trigger.Thresholds.CPUPercent == 0 {
		c.Trigger.Thresholds.CPUPercent = 90
	}
	if c.Trigger.Thresholds.MemoryPercent == 0 {
		c.Trigger.Thresholds.MemoryPercent = 90
	}
	if c.Trigger.Thresholds.DiskPercent == 0 {
		c.Trigger.Thresholds.DiskPercent = 85
	}
	if c.Trigger.Thresholds.LoadPerCore == 0 {
		c.Trigger.Thresholds.LoadPerCore = 2
	}

	if c.Review.IntervalSeconds == 0 {
		c.Review.IntervalSeconds = 60
	}
	if c.Review.ContextBudget == 0 {
		c.Review.ContextBudget = 32_768
	}
	if c.Review.EscalationCooldown == 0 {
		c.Review.EscalationCooldown = 10 * time.Minute
	}

	if c.Meta.ContextBudget == 0 {
		c.Meta.ContextBudget = 131_072
	}

	if c.Executor.AutonomyLevel == "" {
		c.Executor.AutonomyLevel = AutonomyObserve
	}
	if c.Executor.ActionTimeout == 0 {
		c.Executor.ActionTimeout = 120 * time.Second
	}
	if c.Executor.QueueDepthLimit == 0 {
		c.Executor.QueueDepthLimit = 50
	}
	if c.Executor.QueueDir == "" {
		c.Executor.QueueDir = "./data/queue"
	}

	if c.Retention.MetricsRetentionDays == 0 {
		c.Retention.MetricsRetentionDays = 30
	}
	if c.Retention.CleanupInterval == 0 {
		c.Retention.CleanupInterval = 1 * time.Hour
	}

	if c.ContextWindow.BudgetTokens == 0 {
		c.ContextWindow.BudgetTokens = 131_072
	}
	if c.ContextWindow.SoftAgeThreshold == 0 {
		c.ContextWindow.SoftAgeThreshold = 1 * time.Hour
	}
	if c.ContextWindow.SnapshotPath == "" {
		c.ContextWindow.SnapshotPath = "./data/context-snapshot.json"
	}
	if c.ContextWindow.SnapshotInterval == 0 {
		c.ContextWindow.SnapshotInterval = 5 * time.Minute
	}

	applyLLMDefaults(&c.TriggerLLM, "trigger-small", 5*time.Second, 1)
	applyLLMDefaults(&c.ReviewLLM, "review-medium", 30*time.Second, 2)
	applyLLMDefaults(&c.MetaLLM, "meta-large", 120*time.Second, 2)

	if c.Notify.SlackTokenEnv == "" {
		c.Notify.SlackTokenEnv = "SLACK_BOT_TOKEN"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 8
	}
	if c.Host == "" {
		c.Host = "localhost"
	}

	if c.API.Addr == "" {
		c.API.Addr = ":8090"
	}
	if c.API.DashboardURL == "" {
		c.API.DashboardURL = "http://localhost:8090"
	}
}

func applyLLMDefaults(t *LLMTierConfig, model string, timeout time.Duration, retries int) {
	if t.Model == "" {
		t.Model = model
	}
	if t.Timeout == 0 {
		t.Timeout = timeout
	}
	if t.MaxRetries == 0 {
		t.MaxRetries = retries
	}
}
