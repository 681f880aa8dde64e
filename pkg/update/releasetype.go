package update

import "strings"

// ReleaseType identifies a release track. The numeric order is meaningful:
// stricter (more stable) tracks sort lower, so "rt > channel" means the
// manifest belongs to a looser track than the requested channel allows.
type ReleaseType int

const (
	ReleaseTypeDebug ReleaseType = iota
	ReleaseTypeStable
	ReleaseTypeBeta
	ReleaseTypeExperimental
	ReleaseTypeCanary
	ReleaseTypeNightly
	ReleaseTypeUnknown
)

var releaseTypeNames = map[ReleaseType]string{
	ReleaseTypeDebug:        "Debug",
	ReleaseTypeStable:       "Stable",
	ReleaseTypeBeta:         "Beta",
	ReleaseTypeExperimental: "Experimental",
	ReleaseTypeCanary:       "Canary",
	ReleaseTypeNightly:      "Nightly",
	ReleaseTypeUnknown:      "Unknown",
}

// String returns the canonical name of the release type.
func (rt ReleaseType) String() string {
	if name, ok := releaseTypeNames[rt]; ok {
		return name
	}
	return releaseTypeNames[ReleaseTypeUnknown]
}

// ParseReleaseType parses a release type name case-insensitively.
// Unrecognized names yield ReleaseTypeUnknown.
func ParseReleaseType(s string) ReleaseType {
	for rt, name := range releaseTypeNames {
		if strings.EqualFold(name, s) {
			return rt
		}
	}
	return ReleaseTypeUnknown
}
