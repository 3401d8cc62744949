// Package registry holds the fixed catalog of AI models the stylist can run on.
//
// The catalog is loaded once at startup from YAML (the embedded models.yaml unless
// an override file is configured) and never changes for the life of the process.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultRegistryYAML []byte

// MaxRegistryFileSize bounds override files read from disk.
const MaxRegistryFileSize = 256 * 1024

type Provider string

const (
	ProviderProxied Provider = "proxied-inference" // Pollinations, OpenAI-compatible
	ProviderDirect  Provider = "direct-vendor"     // Gemini
)

type Capability string

const (
	CapabilityText      Capability = "text-generation"
	CapabilityVision    Capability = "vision-analysis"
	CapabilityStreaming Capability = "streaming"
)

type Speed string

const (
	SpeedVeryFast Speed = "very-fast"
	SpeedFast     Speed = "fast"
	SpeedMedium   Speed = "medium"
	SpeedSlow     Speed = "slow"
)

// ModelDescriptor is the static metadata for one selectable model.
type ModelDescriptor struct {
	ID            string       `yaml:"id" json:"id" validate:"required"`
	Provider      Provider     `yaml:"provider" json:"provider" validate:"oneof=proxied-inference direct-vendor"`
	Capabilities  []Capability `yaml:"capabilities" json:"capabilities" validate:"min=1,dive,oneof=text-generation vision-analysis streaming"`
	Quality       int          `yaml:"quality" json:"quality" validate:"min=1,max=5"`
	Speed         Speed        `yaml:"speed" json:"speed" validate:"oneof=very-fast fast medium slow"`
	Tier          int          `yaml:"tier" json:"tier" validate:"oneof=1 2"`
	IsRecommended bool         `yaml:"recommended" json:"is_recommended"`
}

// Supports reports whether the model advertises the capability.
func (m ModelDescriptor) Supports(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

var ErrEmptyRegistry = errors.New("model registry is empty")

// Registry is an ordered, immutable set of descriptors with unique ids.
// Safe for concurrent use since nothing mutates it after New.
type Registry struct {
	models []ModelDescriptor
	byID   map[string]int
}

type registryFile struct {
	Models []ModelDescriptor `yaml:"models"`
}

// New validates the descriptors and builds a registry preserving their order.
func New(models []ModelDescriptor, logger *slog.Logger) (*Registry, error) {
	if len(models) == 0 {
		return nil, ErrEmptyRegistry
	}
	if logger == nil {
		logger = slog.Default()
	}

	validate := validator.New()
	r := &Registry{
		models: make([]ModelDescriptor, len(models)),
		byID:   make(map[string]int, len(models)),
	}
	recommended := 0
	for i, m := range models {
		if err := validate.Struct(m); err != nil {
			return nil, fmt.Errorf("model %d (%q) is invalid: %w", i, m.ID, err)
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", m.ID)
		}
		if m.IsRecommended {
			recommended++
		}
		m.Capabilities = append([]Capability(nil), m.Capabilities...)
		r.models[i] = m
		r.byID[m.ID] = i
	}

	// More than one recommended entry is tolerated; Default picks the first.
	if recommended > 1 {
		logger.Warn("multiple models marked recommended, the first one is the default",
			"count", recommended, "default", r.Default().ID)
	}
	return r, nil
}

// Parse builds a registry from a YAML document with a top-level "models" list.
func Parse(data []byte, logger *slog.Logger) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model registry: %w", err)
	}
	return New(f.Models, logger)
}

// Load reads the registry from path, or the built-in catalog when path is empty.
func Load(path string, logger *slog.Logger) (*Registry, error) {
	if path == "" {
		return Parse(defaultRegistryYAML, logger)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat model registry %s: %w", path, err)
	}
	if info.Size() > MaxRegistryFileSize {
		return nil, fmt.Errorf("model registry %s exceeds %d bytes", path, MaxRegistryFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model registry %s: %w", path, err)
	}
	return Parse(data, logger)
}

// MustLoadDefault returns the built-in registry and panics if it is broken.
func MustLoadDefault() *Registry {
	r, err := Parse(defaultRegistryYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("built-in model registry: %v", err))
	}
	return r
}

// List returns the descriptors in registration order.
func (r *Registry) List() []ModelDescriptor {
	out := make([]ModelDescriptor, len(r.models))
	copy(out, r.models)
	return out
}

func (r *Registry) Lookup(id string) (ModelDescriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return ModelDescriptor{}, false
	}
	return r.models[i], true
}

// Default returns the first recommended model, or the first model when none is
// recommended.
func (r *Registry) Default() ModelDescriptor {
	for _, m := range r.models {
		if m.IsRecommended {
			return m
		}
	}
	return r.models[0]
}

func (r *Registry) Len() int { return len(r.models) }
