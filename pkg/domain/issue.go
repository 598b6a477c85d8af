package domain

import "time"

// IssueStatus is the lifecycle state of an Issue.
type IssueStatus string

// Recognized issue statuses.
const (
	IssueOpen          IssueStatus = "open"
	IssueInvestigating IssueStatus = "investigating"
	IssueResolved      IssueStatus = "resolved"
	IssueClosed        IssueStatus = "closed"
)

// Investigation is one diagnostic note attached to an Issue's timeline,
// typically written by the Review or Meta reasoner.
type Investigation struct {
	Timestamp time.Time `json:"timestamp"`
	Author    Origin    `json:"author"`
	Summary   string    `json:"summary"`
}

// Issue is a long-lived record correlating triggers and actions for a
// given (host, subject) pair.
type Issue struct {
	ID          string      `json:"id"`
	Host        string      `json:"host"`
	Subject     string      `json:"subject"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severity"`
	Status      IssueStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Investigations []Investigation  `json:"investigations,omitempty"`
	Actions        []ProposedAction `json:"actions,omitempty"`
	Resolution     string           `json:"resolution,omitempty"`

	// Fingerprints seen for this issue; used for correlation and for the
	// escalation-cooldown check.
	Fingerprints []string `json:"fingerprints,omitempty"`

	// ResolvedAt gates the reopen cooldown (spec.md §4.6, default 24h).
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// HasFingerprint reports whether fp has already been recorded on this issue.
func (i *Issue) HasFingerprint(fp string) bool {
	for _, f := range i.Fingerprints {
		if f == fp {
			return true
		}
	}
	return false
}
