package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/doclift/doclift/internal/config"
	"github.com/doclift/doclift/pkg/manifest"
)

func TestApplySubmitDefaults(t *testing.T) {
	t.Run("config fills unset manifest values", func(t *testing.T) {
		m := &manifest.Manifest{
			Version: "1.0",
			Package: manifest.PackageConfig{Path: "./p"},
			Match:   manifest.MatchConfig{Includes: []string{"**/*.ts"}},
		}

		applySubmitDefaults(m, config.SubmitConfig{Concurrency: 9, RateLimit: 2.5})

		assert.Equal(t, 9, m.Generate.Concurrency)
		assert.Equal(t, 2.5, m.Generate.RateLimit)
	})

	t.Run("explicit manifest values win", func(t *testing.T) {
		m := &manifest.Manifest{
			Generate: manifest.GenerateConfig{Concurrency: 2, RateLimit: 0.5},
		}

		applySubmitDefaults(m, config.SubmitConfig{Concurrency: 9, RateLimit: 2.5})

		assert.Equal(t, 2, m.Generate.Concurrency)
		assert.Equal(t, 0.5, m.Generate.RateLimit)
	})

	t.Run("zero config leaves manifest untouched", func(t *testing.T) {
		m := &manifest.Manifest{}

		applySubmitDefaults(m, config.SubmitConfig{})

		assert.Zero(t, m.Generate.Concurrency)
		assert.Zero(t, m.Generate.RateLimit)
	})
}
