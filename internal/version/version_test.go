package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	origTag, origCommit, origBuildTime, origReader := tag, commit, buildTime, buildInfoReader
	t.Cleanup(func() {
		tag, commit, buildTime, buildInfoReader = origTag, origCommit, origBuildTime, origReader
	})

	vcs := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "f00dcafe"},
			{Key: "vcs.time", Value: "2024-11-02T10:00:00Z"},
			{Key: "other.key", Value: "ignored"},
		}}, true
	}

	tests := []struct {
		name      string
		tag       string
		commit    string
		buildTime string
		reader    func() (*debug.BuildInfo, bool)
		expected  string
	}{
		{
			name: "ldflags only", tag: "v1.0.0", commit: "abc123", buildTime: "2024-10-01",
			reader:   func() (*debug.BuildInfo, bool) { return nil, false },
			expected: "cleanbites v1.0.0 (abc123) built at 2024-10-01",
		},
		{
			name: "vcs stamp fills unset values", tag: "dev", commit: "unknown", buildTime: "unknown",
			reader:   vcs,
			expected: "cleanbites dev (f00dcafe) built at 2024-11-02T10:00:00Z",
		},
		{
			name: "ldflags win over vcs", tag: "v2.0.0", commit: "ldflags", buildTime: "today",
			reader:   vcs,
			expected: "cleanbites v2.0.0 (ldflags) built at today",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, commit, buildTime, buildInfoReader = tt.tag, tt.commit, tt.buildTime, tt.reader
			assert.Equal(t, tt.expected, String())
		})
	}
}
