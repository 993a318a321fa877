package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgent(t *testing.T) {
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })

	tests := []struct {
		name     string
		version  string
		commit   string
		expected string
	}{
		{name: "注入版本和提交", version: "v1.4.0", commit: "a1b2c3d", expected: "anheyu-sitemap/1.4.0 (+a1b2c3d)"},
		{name: "不带 v 前缀", version: "2.0.0", commit: "ffffff0", expected: "anheyu-sitemap/2.0.0 (+ffffff0)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit = tt.version, tt.commit
			assert.Equal(t, tt.expected, UserAgent())
		})
	}
}

func TestGetVersionString(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = origVersion, origCommit, origDate })

	Version, Commit, Date = "v1.0.0", "abc1234", "2025-10-18 12:00:00"
	assert.Equal(t, "v1.0.0, commit abc1234, built at 2025-10-18 12:00:00", GetVersionString())
}
