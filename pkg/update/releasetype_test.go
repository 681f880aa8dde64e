package update_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wuxler/upshift/pkg/update"
)

func TestParseReleaseType(t *testing.T) {
	testcases := []struct {
		input string
		want  update.ReleaseType
	}{
		{"Stable", update.ReleaseTypeStable},
		{"stable", update.ReleaseTypeStable},
		{"NIGHTLY", update.ReleaseTypeNightly},
		{"beta", update.ReleaseTypeBeta},
		{"Experimental", update.ReleaseTypeExperimental},
		{"canary", update.ReleaseTypeCanary},
		{"debug", update.ReleaseTypeDebug},
		{"", update.ReleaseTypeUnknown},
		{"bogus", update.ReleaseTypeUnknown},
	}
	for _, tc := range testcases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, update.ParseReleaseType(tc.input))
		})
	}
}

func TestReleaseType_Order(t *testing.T) {
	// Stricter (more stable) tracks sort lower than looser ones.
	assert.Less(t, update.ReleaseTypeDebug, update.ReleaseTypeStable)
	assert.Less(t, update.ReleaseTypeStable, update.ReleaseTypeBeta)
	assert.Less(t, update.ReleaseTypeBeta, update.ReleaseTypeExperimental)
	assert.Less(t, update.ReleaseTypeExperimental, update.ReleaseTypeCanary)
	assert.Less(t, update.ReleaseTypeCanary, update.ReleaseTypeNightly)
	assert.Less(t, update.ReleaseTypeNightly, update.ReleaseTypeUnknown)
}

func TestReleaseType_String(t *testing.T) {
	assert.Equal(t, "Stable", update.ReleaseTypeStable.String())
	assert.Equal(t, "Unknown", update.ReleaseType(99).String())
}
