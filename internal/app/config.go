package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sanixdarker/strapisource/pkg/naming"
)

// Environment variables consulted when the config leaves a value empty.
const (
	EnvAPIURL = "STRAPI_API_URL"
	EnvToken  = "STRAPI_TOKEN"
)

// MarkdownImagesConfig selects the markdown fields scanned for images.
type MarkdownImagesConfig struct {
	// TypesToParse maps a collection name to its markdown fields.
	TypesToParse map[string][]string `yaml:"typesToParse"`
	// IncludeHTML also picks up <img> tags embedded in the markdown.
	IncludeHTML bool `yaml:"includeHTML"`
	// RenderHTML adds a sanitized `<field>_html` sibling to every field.
	RenderHTML bool `yaml:"renderHTML"`
}

// DownloadConfig controls file downloads.
type DownloadConfig struct {
	Dir               string  `yaml:"dir"`
	MaxParallel       int     `yaml:"maxParallel"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
}

// Config holds application configuration.
type Config struct {
	APIURL          string               `yaml:"apiURL"`
	AccessToken     string               `yaml:"accessToken"`
	CollectionTypes []string             `yaml:"collectionTypes"`
	SingleTypes     []string             `yaml:"singleTypes"`
	QueryLimit      int                  `yaml:"queryLimit"`
	MarkdownImages  MarkdownImagesConfig `yaml:"markdownImages"`
	Download        DownloadConfig       `yaml:"download"`
	// RequestsPerSecond paces GraphQL requests. Zero disables pacing.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	// SchemaFile replaces live introspection with a local SDL or
	// introspection JSON file.
	SchemaFile string        `yaml:"schemaFile"`
	SchemaTTL  time.Duration `yaml:"schemaTTL"`
	Namespace  string        `yaml:"namespace"`
	DBPath     string        `yaml:"dbPath"`
	Port       int           `yaml:"port"`
	Debug      bool          `yaml:"debug"`
	LogFormat  string        `yaml:"logFormat"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		QueryLimit: 100,
		Download: DownloadConfig{
			Dir:         "./.strapisource/files",
			MaxParallel: 8,
		},
		SchemaTTL: 10 * time.Minute,
		Namespace: "strapisource",
		DBPath:    "./.strapisource/nodes.db",
		Port:      8080,
		LogFormat: LogFormatText,
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv fills the API URL and token from the environment when unset.
func (c *Config) ApplyEnv() {
	if c.APIURL == "" {
		c.APIURL = os.Getenv(EnvAPIURL)
	}
	if c.AccessToken == "" {
		c.AccessToken = os.Getenv(EnvToken)
	}
}

// Validate checks the settings a sync needs.
func (c *Config) Validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, fmt.Errorf("apiURL is required (or set %s)", EnvAPIURL))
	} else if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("apiURL %q is not an absolute URL", c.APIURL))
	}
	if len(c.CollectionTypes) == 0 && len(c.SingleTypes) == 0 {
		errs = append(errs, errors.New("at least one collection or single type is required"))
	}
	if c.QueryLimit < 0 {
		errs = append(errs, errors.New("queryLimit must not be negative"))
	}
	if c.Download.MaxParallel < 0 {
		errs = append(errs, errors.New("download.maxParallel must not be negative"))
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("logFormat must be %q or %q", LogFormatText, LogFormatJSON))
	}
	return errors.Join(errs...)
}

// MarkdownFields keys the configured markdown fields by schema type name.
func (c *Config) MarkdownFields() map[string][]string {
	out := make(map[string][]string, len(c.MarkdownImages.TypesToParse))
	for name, fields := range c.MarkdownImages.TypesToParse {
		typeName := naming.TypeName(name)
		out[typeName] = append(out[typeName], fields...)
	}
	return out
}
