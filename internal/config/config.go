package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/andresmejia3/facecheck/internal/align"
	"github.com/andresmejia3/facecheck/internal/types"
)

// Placeholders expanded in demo command lines.
const (
	SelfPlaceholder = "{self}"
	RootPlaceholder = "{root}"
)

// Config defines runtime settings for facecheck.
type Config struct {
	Root      string `yaml:"root"`
	ImgDim    int    `yaml:"imgDim"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	Database  string `yaml:"database"`

	Models Models `yaml:"models"`
	Align  Align  `yaml:"align"`
	Checks Checks `yaml:"checks"`
}

// Models lists the pretrained artifacts.
type Models struct {
	Landmark    string `yaml:"landmark"`
	Network     string `yaml:"network"`
	PigoCascade string `yaml:"pigoCascade"`
}

// Align configures the align engine process and the bounding box backend.
type Align struct {
	Engine   []string         `yaml:"engine"`
	Detector string           `yaml:"detector"`
	Timeout  string           `yaml:"timeout"`
	Pigo     align.PigoParams `yaml:"pigo"`
}

// Checks holds the expectations of the verify harness.
type Checks struct {
	Pipeline   Pipeline `yaml:"pipeline"`
	Compare    Demo     `yaml:"compare"`
	Classifier Demo     `yaml:"classifier"`
}

// Pipeline lists the reference values for one image.
type Pipeline struct {
	Image        string            `yaml:"image"`
	RGBNorm      float64           `yaml:"rgbNorm"`
	Box          types.BoundingBox `yaml:"box"`
	AlignedNorm  float64           `yaml:"alignedNorm"`
	CosineToOnes float64           `yaml:"cosineToOnes"`
}

// Demo is a process whose stdout must contain a substring.
type Demo struct {
	Command  []string `yaml:"command"`
	Contains string   `yaml:"contains"`
	Timeout  string   `yaml:"timeout"` // empty waits forever
}

// Default returns the reference configuration for the bundled demo images.
func Default() *Config {
	return &Config{
		Root:      ".",
		ImgDim:    96,
		LogLevel:  "info",
		LogFormat: "text",
		Models: Models{
			Landmark:    "models/dlib/shape_predictor_68_face_landmarks.dat",
			Network:     "models/openface/nn4.v1.t7",
			PigoCascade: "models/pigo/facefinder",
		},
		Align: Align{
			Engine:   []string{"python2", "-u", "python/align_engine.py"},
			Detector: align.DetectorEngine,
			Timeout:  "60s",
			Pigo:     align.DefaultPigoParams(),
		},
		Checks: Checks{
			Pipeline: Pipeline{
				Image:        "images/examples/lennon-1.jpg",
				RGBNorm:      11.1355,
				Box:          types.BoundingBox{Left: 341, Top: 193, Right: 1006, Bottom: 859},
				AlignedNorm:  8.30662,
				CosineToOnes: 1.0133943701889758,
			},
			Compare: Demo{
				Command: []string{SelfPlaceholder, "compare",
					RootPlaceholder + "/images/examples/lennon-1.jpg",
					RootPlaceholder + "/images/examples/lennon-2.jpg"},
				Contains: "0.352",
			},
			Classifier: Demo{
				Command: []string{SelfPlaceholder, "classifier", "infer",
					RootPlaceholder + "/models/openface/celeb-classifier.nn4.v1.json",
					RootPlaceholder + "/images/examples/carell.jpg"},
				Contains: "Predict SteveCarell with 0.85 confidence.",
			},
		},
	}
}

// Load reads an optional YAML file over the defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if root := os.Getenv("FACECHECK_ROOT"); root != "" {
		cfg.Root = root
	}
	if level := os.Getenv("FACECHECK_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if engine := os.Getenv("FACECHECK_ALIGN_ENGINE"); engine != "" {
		cfg.Align.Engine = strings.Fields(engine)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would only fail later, mid-run.
func (c *Config) Validate() error {
	if c.ImgDim <= 0 {
		return fmt.Errorf("imgDim must be positive, got %d", c.ImgDim)
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid logLevel: %w", err)
		}
	}
	switch c.Align.Detector {
	case "", align.DetectorEngine, align.DetectorPigo:
	default:
		return fmt.Errorf("unknown detector %q (use %q or %q)", c.Align.Detector, align.DetectorEngine, align.DetectorPigo)
	}
	if len(c.Align.Engine) == 0 {
		return fmt.Errorf("align.engine command is empty")
	}
	for name, d := range map[string]string{
		"align.timeout":             c.Align.Timeout,
		"checks.compare.timeout":    c.Checks.Compare.Timeout,
		"checks.classifier.timeout": c.Checks.Classifier.Timeout,
	} {
		if _, err := ParseTimeout(d); err != nil {
			return fmt.Errorf("invalid %s (use '30s', '500ms'): %w", name, err)
		}
	}
	return nil
}

// ParseTimeout treats an empty string as no timeout.
func ParseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// Resolve anchors relative paths at Root.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// ExpandCommand substitutes the placeholders in a demo command line.
func (c *Config) ExpandCommand(argv []string, self string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		a = strings.ReplaceAll(a, SelfPlaceholder, self)
		out[i] = strings.ReplaceAll(a, RootPlaceholder, c.Root)
	}
	return out
}

// DefaultConfigPath returns the config file named by FACECHECK_CONFIG, if any.
func DefaultConfigPath() string {
	return os.Getenv("FACECHECK_CONFIG")
}
