package triggerloop

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// ServiceProber reports a service's active state. Implemented by
// SystemctlProber; a probe error is treated as "state unknown" and
// produces no candidate event for that service (fail-quiet, matching
// spec.md §4.1's per-tick failure isolation).
type ServiceProber interface {
	IsActive(ctx context.Context, service string) (state string, err error)
}

// SystemctlProber shells out to `systemctl is-active <service>`.
type SystemctlProber struct{}

func (SystemctlProber) IsActive(ctx context.Context, service string) (string, error) {
	cmd := exec.CommandContext(ctx, "systemctl", "is-active", service)
	out, err := cmd.Output()
	state := strings.TrimSpace(string(out))
	if state == "" {
		state = "unknown"
	}
	// systemctl is-active exits non-zero for any state but "active";
	// that is expected, not a probe failure — only a genuinely missing
	// binary or context cancellation should surface as err.
	if err != nil {
		if _, isExit := err.(*exec.ExitError); isExit {
			return state, nil
		}
		return state, err
	}
	return state, nil
}

// ProbeServices checks each critical service and returns one
// service_state candidate event per service in {failed, inactive}
// (spec.md §4.1 step 4).
func ProbeServices(ctx context.Context, prober ServiceProber, services []string, now time.Time) []domain.TriggerEvent {
	var out []domain.TriggerEvent

	for _, svc := range services {
		state, err := prober.IsActive(ctx, svc)
		if err != nil {
			continue
		}
		if state != "failed" && state != "inactive" {
			continue
		}

		severity := domain.SeverityWarning
		if state == "failed" {
			severity = domain.SeverityCritical
		}
		out = append(out, domain.NewTriggerEvent(now, domain.TriggerKindServiceState, severity, svc,
			"service "+svc+" is "+state, map[string]string{"state": state}))
	}

	return out
}
