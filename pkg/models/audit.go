package models

import "time"

// AuditEntry records a single generation request and its outcome.
type AuditEntry struct {
	RequestID   string    `json:"request_id"`
	Fingerprint string    `json:"key_fingerprint"`
	Model       string    `json:"model"`
	Prompt      string    `json:"prompt,omitempty"`
	Response    string    `json:"response,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Cached      bool      `json:"cached"`
	TotalTokens int       `json:"total_tokens"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuditConfig controls the generation history log.
type AuditConfig struct {
	Enabled       bool     `yaml:"enabled"`
	DBPath        string   `yaml:"db_path"`
	RetentionDays int      `yaml:"retention_days"`
	Include       []string `yaml:"include"`       // "prompts", "responses"
	MaxBodySize   int      `yaml:"max_body_size"` // bytes
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Fingerprint string
	Model       string
	Since       time.Time
	RequestID   string
	Contains    string // substring of the stored prompt
	ErrorsOnly  bool
	Limit       int
}

// AuditStat holds aggregate audit counts for a model/day combination.
type AuditStat struct {
	Model  string
	Day    string
	Count  int
	Cached int
	Errors int
}
