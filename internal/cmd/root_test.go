package cmd

import (
	"errors"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2026-01-15",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
			assert.Contains(t, rootCmd.Version, tt.version)
		})
	}
}

func TestExitError(t *testing.T) {
	t.Run("carries code and wraps cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := exitError(foundry.ExitInvalidArgument, "Invalid manifest", cause)

		var coded *codedError
		require.ErrorAs(t, err, &coded)
		assert.Equal(t, foundry.ExitInvalidArgument, coded.code)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "Invalid manifest")
	})

	t.Run("nil cause", func(t *testing.T) {
		err := exitError(foundry.ExitFileNotFound, "Job not found", nil)

		var coded *codedError
		require.ErrorAs(t, err, &coded)
		assert.Equal(t, foundry.ExitFileNotFound, coded.code)
		assert.Equal(t, "Job not found", err.Error())
	})
}

func TestParseArea(t *testing.T) {
	for name, wantErr := range map[string]bool{
		"active":    false,
		"processed": false,
		"failed":    false,
		"submitted": true,
		"":          true,
	} {
		_, err := parseArea(name)
		if wantErr {
			assert.Error(t, err, "area %q", name)
		} else {
			assert.NoError(t, err, "area %q", name)
		}
	}
}
