// Package config resolves realtime model configurations from the
// environment and an optional JSON settings file.
//
// Models are discovered from environment variable groups sharing a suffix:
//
//	ENDPOINT_GPT4O=https://myresource.openai.azure.com
//	API_KEY_GPT4O=...
//	API_VERSION_GPT4O=2024-10-01-preview
//	DEPLOYMENT_NAME_GPT4O=gpt-4o-realtime-preview
//	MODEL_GPT4O=GPT-4o Realtime        (optional display name)
//
// A group is registered only when endpoint, key, version and deployment are
// all present. The bare AZURE_OPENAI_* variables register a single "default"
// model when no suffixed groups exist.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

const DefaultPath = "config/rtspeak.json"

const (
	DefaultAPIVersion = "2024-10-01-preview"
	DefaultVoice      = "alloy"
)

var ErrMissingField = errors.New("missing required configuration")

// ModelConfig holds everything needed to open one realtime session against
// a deployment. Immutable once resolved.
type ModelConfig struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Endpoint   string `json:"endpoint"`
	APIKey     string `json:"api_key"`
	Deployment string `json:"deployment"`
	APIVersion string `json:"api_version"`
	Voice      string `json:"voice"`
}

// Validate reports the first missing field required to open a session.
// It must pass before any network call is attempted.
func (m ModelConfig) Validate() error {
	switch {
	case strings.TrimSpace(m.Endpoint) == "":
		return fmt.Errorf("%w: endpoint", ErrMissingField)
	case strings.TrimSpace(m.APIKey) == "":
		return fmt.Errorf("%w: api key", ErrMissingField)
	case strings.TrimSpace(m.Deployment) == "":
		return fmt.Errorf("%w: deployment", ErrMissingField)
	case strings.TrimSpace(m.APIVersion) == "":
		return fmt.Errorf("%w: api version", ErrMissingField)
	}
	return nil
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type AppConfig struct {
	Logging LoggingConfig `json:"logging"`
	Models  []ModelConfig `json:"models"`
}

// Load reads the optional JSON settings file, then overlays models and
// logging settings discovered from the environment. Environment groups win
// over file entries with the same ID.
func Load(path string) (*AppConfig, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := &AppConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	return cfg, nil
}

func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}

	for _, m := range modelsFromEnv() {
		c.upsert(m)
	}

	for i := range c.Models {
		if strings.TrimSpace(c.Models[i].APIVersion) == "" {
			c.Models[i].APIVersion = DefaultAPIVersion
		}
		if strings.TrimSpace(c.Models[i].Voice) == "" {
			c.Models[i].Voice = DefaultVoice
		}
	}
}

func (c *AppConfig) upsert(m ModelConfig) {
	for i := range c.Models {
		if c.Models[i].ID == m.ID {
			c.Models[i] = m
			return
		}
	}
	c.Models = append(c.Models, m)
}

// Lookup returns the model with the given ID, or the sole configured model
// when id is empty.
func (c *AppConfig) Lookup(id string) (ModelConfig, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		if len(c.Models) == 1 {
			return c.Models[0], nil
		}
		return ModelConfig{}, fmt.Errorf("model id required, %d models configured", len(c.Models))
	}
	for _, m := range c.Models {
		if m.ID == id {
			return m, nil
		}
	}
	return ModelConfig{}, fmt.Errorf("model %q not found", id)
}

func modelsFromEnv() []ModelConfig {
	var models []ModelConfig

	var suffixes []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if rest, ok := strings.CutPrefix(key, "DEPLOYMENT_NAME_"); ok && rest != "" {
			suffixes = append(suffixes, rest)
		}
	}
	sort.Strings(suffixes)

	for _, suffix := range suffixes {
		m := ModelConfig{
			ID:         strings.ToLower(suffix),
			Endpoint:   os.Getenv("ENDPOINT_" + suffix),
			APIKey:     os.Getenv("API_KEY_" + suffix),
			APIVersion: os.Getenv("API_VERSION_" + suffix),
			Deployment: os.Getenv("DEPLOYMENT_NAME_" + suffix),
		}
		if m.Endpoint == "" || m.APIKey == "" || m.APIVersion == "" {
			continue
		}
		m.Name = os.Getenv("MODEL_" + suffix)
		if m.Name == "" {
			m.Name = m.Deployment
		}
		models = append(models, m)
	}

	if len(models) > 0 {
		return models
	}

	// Single-model fallback on the bare variable names.
	m := ModelConfig{
		ID:         "default",
		Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME"),
		APIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
	}
	if m.Endpoint == "" && m.APIKey == "" && m.Deployment == "" {
		return nil
	}
	m.Name = m.Deployment
	return []ModelConfig{m}
}
