package triggerloop

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// JournalReader returns the journal lines written since the last tick.
// Implemented by JournalctlReader; a failure is not fatal (spec.md §4.1:
// "If the journal read fails, the tick proceeds with empty log input").
type JournalReader interface {
	ReadSince(ctx context.Context, since time.Time) ([]string, error)
}

// JournalctlReader shells out to `journalctl --since <ts> --no-pager`,
// the only available mechanism: no ecosystem journal-reading client
// library appears in the retrieved pack (see DESIGN.md).
type JournalctlReader struct{}

func (JournalctlReader) ReadSince(ctx context.Context, since time.Time) ([]string, error) {
	cmd := exec.CommandContext(ctx, "journalctl",
		"--since", since.Format("2006-01-02 15:04:05"), "--no-pager", "--output=short-iso")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// compiledLogRule pairs a config.LogRule with its compiled regex.
type compiledLogRule struct {
	rule config.LogRule
	re   *regexp.Regexp
}

// CompileLogRules compiles the ordered rule list once per loop
// construction; invalid patterns are skipped rather than aborting
// startup, matching the teacher's "log and skip" posture for
// user-supplied regexes.
func CompileLogRules(rules []config.LogRule) []compiledLogRule {
	var out []compiledLogRule
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			continue
		}
		out = append(out, compiledLogRule{rule: r, re: re})
	}
	return out
}

// ScanLogLines matches lines against the ordered rule list, returning
// one log_pattern candidate per first-matching rule per line (spec.md
// §4.1 step 3). Lines matching no rule are returned separately as
// unclassified input for the optional classifier stage.
func ScanLogLines(lines []string, rules []compiledLogRule, now time.Time) (events []domain.TriggerEvent, unclassified []string) {
	for _, line := range lines {
		matched := false
		for _, cr := range rules {
			if !cr.re.MatchString(line) {
				continue
			}
			subject := cr.rule.SubjectTemplate
			if subject == "" {
				subject = cr.rule.Name
			}
			events = append(events, domain.NewTriggerEvent(now, domain.TriggerKindLogPattern,
				domain.Severity(cr.rule.Severity), subject, line, map[string]string{"rule": cr.rule.Name}))
			matched = true
			break
		}
		if !matched {
			unclassified = append(unclassified, line)
		}
	}
	return events, unclassified
}
