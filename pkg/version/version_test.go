package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_FallsBackToVCSStamp(t *testing.T) {
	read := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "v1.4.0"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
				{Key: "vcs.modified", Value: "true"},
			},
		}, true
	}

	info := resolve(read)
	assert.Equal(t, BuildInfo{
		Version:   "v1.4.0",
		BuildTime: "2026-10-01T12:00:00Z",
		GitCommit: "0123456789abcdef0123",
		GoVersion: runtime.Version(),
		Modified:  true,
	}, info)
	assert.Equal(t, "taskflow v1.4.0 (0123456789ab-dirty, built 2026-10-01T12:00:00Z, "+runtime.Version()+")", info.String())
}

func TestResolve_LdflagsWin(t *testing.T) {
	prev := [3]string{Version, BuildTime, GitCommit}
	t.Cleanup(func() { Version, BuildTime, GitCommit = prev[0], prev[1], prev[2] })
	Version, BuildTime, GitCommit = "1.0.0", "yesterday", "abc123"

	read := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main:     debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffff"}},
		}, true
	}
	info := resolve(read)
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "abc123", info.GitCommit)
	assert.Equal(t, "yesterday", info.BuildTime)
	assert.False(t, info.Modified)
}

func TestResolve_NoBuildInfo(t *testing.T) {
	info := resolve(func() (*debug.BuildInfo, bool) { return nil, false })
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}
