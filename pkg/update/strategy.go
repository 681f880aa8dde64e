package update

import (
	"strings"

	"github.com/wuxler/upshift/pkg/errdefs"
)

// Strategy controls when the supervisor checks for and installs updates
// relative to the wrapped workload.
type Strategy int

const (
	StrategyCheckBefore Strategy = iota
	StrategyCheckDuring
	StrategyCheckAfter
	StrategyInstallBefore
	StrategyInstallDuring
	StrategyInstallAfter
	StrategyNever
)

// Timing is the phase of the workload an update check runs in.
type Timing int

const (
	TimingNone Timing = iota
	TimingBefore
	TimingDuring
	TimingAfter
)

var strategyNames = map[Strategy]string{
	StrategyCheckBefore:   "CheckBefore",
	StrategyCheckDuring:   "CheckDuring",
	StrategyCheckAfter:    "CheckAfter",
	StrategyInstallBefore: "InstallBefore",
	StrategyInstallDuring: "InstallDuring",
	StrategyInstallAfter:  "InstallAfter",
	StrategyNever:         "Never",
}

// String returns the canonical strategy name.
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return "Never"
}

// ParseStrategy parses a strategy name case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return StrategyNever, errdefs.Newf(errdefs.ErrInvalidParameter, "unknown update strategy %q", name)
}

// Check reports whether the strategy checks for updates at all.
func (s Strategy) Check() bool {
	return s != StrategyNever
}

// Download reports whether a found update is also downloaded and installed.
func (s Strategy) Download() bool {
	switch s {
	case StrategyInstallBefore, StrategyInstallDuring, StrategyInstallAfter:
		return true
	}
	return false
}

// Timing returns when the check runs relative to the workload.
func (s Strategy) Timing() Timing {
	switch s {
	case StrategyCheckBefore, StrategyInstallBefore:
		return TimingBefore
	case StrategyCheckDuring, StrategyInstallDuring:
		return TimingDuring
	case StrategyCheckAfter, StrategyInstallAfter:
		return TimingAfter
	}
	return TimingNone
}
