package version

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestLinkerValuesWin(t *testing.T) {
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime })

	Version = "v1.2.3"
	GitCommit = "0123456789abcdef"
	BuildTime = "2025-01-02T03:04:05Z"

	info := Get()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), info.BuildTime.UTC())
}

func TestShort(t *testing.T) {
	testCases := []struct {
		name     string
		info     BuildInfo
		expected string
	}{
		{"bare", BuildInfo{Version: "dev", GitCommit: "unknown"}, "hrserve dev"},
		{"commit", BuildInfo{Version: "v1.0.0", GitCommit: "abcdef0123"}, "hrserve v1.0.0 (abcdef0)"},
		{"dirty", BuildInfo{Version: "dev", GitCommit: "abcdef0123", Dirty: true}, "hrserve dev (abcdef0) (dirty)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.info.Short())
		})
	}
}

func TestParseBuildTime(t *testing.T) {
	assert.True(t, parseBuildTime("unknown").IsZero())
	assert.True(t, parseBuildTime("").IsZero())
	assert.Equal(t, 2024, parseBuildTime("2024-06-01 10:00:00").Year())
}
