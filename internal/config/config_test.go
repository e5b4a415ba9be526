package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/facecheck/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 96, cfg.ImgDim)
	assert.Equal(t, 11.1355, cfg.Checks.Pipeline.RGBNorm)
	assert.Equal(t, types.BoundingBox{Left: 341, Top: 193, Right: 1006, Bottom: 859}, cfg.Checks.Pipeline.Box)
	assert.Equal(t, "0.352", cfg.Checks.Compare.Contains)
	assert.Equal(t, "Predict SteveCarell with 0.85 confidence.", cfg.Checks.Classifier.Contains)
}

func TestDefaultEngineIsShipped(t *testing.T) {
	cfg := Default()
	require.Len(t, cfg.Align.Engine, 3)
	// The default command runs from the repository root
	_, err := os.Stat(filepath.Join("..", "..", cfg.Align.Engine[2]))
	assert.NoError(t, err, "default align engine script must exist")
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
root: /srv/openface
imgDim: 64
models:
  network: /abs/nn4.small2.v1.t7
align:
  detector: pigo
checks:
  pipeline:
    box: {left: 1, top: 2, right: 3, bottom: 4}
  compare:
    command: ["python2", "{root}/demos/compare.py", "a.jpg", "b.jpg"]
    timeout: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.ImgDim)
	assert.Equal(t, "pigo", cfg.Align.Detector)
	assert.Equal(t, types.BoundingBox{Left: 1, Top: 2, Right: 3, Bottom: 4}, cfg.Checks.Pipeline.Box)
	// Untouched keys keep their defaults
	assert.Equal(t, "models/dlib/shape_predictor_68_face_landmarks.dat", cfg.Models.Landmark)
	assert.Equal(t, "/srv/openface/models/dlib/shape_predictor_68_face_landmarks.dat", cfg.Resolve(cfg.Models.Landmark))
	assert.Equal(t, "/abs/nn4.small2.v1.t7", cfg.Resolve(cfg.Models.Network))

	argv := cfg.ExpandCommand(cfg.Checks.Compare.Command, "/bin/facecheck")
	assert.Equal(t, []string{"python2", "/srv/openface/demos/compare.py", "a.jpg", "b.jpg"}, argv)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FACECHECK_ROOT", "/data")
	t.Setenv("FACECHECK_LOG_LEVEL", "debug")
	t.Setenv("FACECHECK_ALIGN_ENGINE", "python3 -u engine.py")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.Root)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"python3", "-u", "engine.py"}, cfg.Align.Engine)

	argv := cfg.ExpandCommand(cfg.Checks.Compare.Command, "/bin/facecheck")
	assert.Equal(t, "/bin/facecheck", argv[0])
	assert.Equal(t, "/data/images/examples/lennon-1.jpg", argv[2])
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad detector", "align: {detector: haar}"},
		{"bad img dim", "imgDim: 0"},
		{"bad timeout", "checks: {compare: {timeout: soon}}"},
		{"negative timeout", "align: {timeout: -1s}"},
		{"empty engine", "align: {engine: []}"},
		{"bad log level", "logLevel: verbose"},
		{"malformed yaml", "imgDim: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseTimeout(t *testing.T) {
	d, err := ParseTimeout("")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = ParseTimeout("1.5s")
	require.NoError(t, err)
	assert.Equal(t, "1.5s", d.String())
}
