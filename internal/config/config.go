// Package config loads and validates dtogen.yaml.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okra-platform/dtogen/internal/errors"
)

// FileNames are the config file names searched for, in order.
var FileNames = []string{"dtogen.yaml", "dtogen.yml"}

// EnvPrefix prefixes environment overrides (DTOGEN_SOURCE_KIND -> source.kind).
const EnvPrefix = "DTOGEN_"

// Source kinds.
const (
	SourceManifest = "manifest"
	SourceGraphQL  = "graphql"
	SourceGo       = "go"
	SourceProto    = "proto"
)

// Config represents the dtogen.yaml configuration file
type Config struct {
	Name                string         `koanf:"name" validate:"required"`
	Source              SourceConfig   `koanf:"source"`
	Targets             []TargetConfig `koanf:"targets" validate:"required,min=1,unique=Name,dive"`
	MaxIdentifierLength int            `koanf:"max_identifier_length" validate:"gte=0"`
	Dev                 DevConfig      `koanf:"dev"`
	Log                 LogConfig      `koanf:"log"`

	// Dir is the directory holding the config file. Relative paths have
	// already been resolved against it.
	Dir string `koanf:"-"`
}

// SourceConfig selects the front end and its inputs.
type SourceConfig struct {
	Kind  string   `koanf:"kind" validate:"required,oneof=manifest graphql go proto"`
	Paths []string `koanf:"paths" validate:"required,min=1,dive,required"`
}

// TargetConfig is one output target.
type TargetConfig struct {
	Name       string   `koanf:"name" validate:"required"`
	Language   string   `koanf:"language" validate:"required"`
	Paths      []string `koanf:"paths" validate:"required,min=1,dive,required"`
	Namespaces []string `koanf:"namespaces"`
	Package    string   `koanf:"package"`
	Comments   bool     `koanf:"comments"`
}

// DevConfig contains watch-mode configuration
type DevConfig struct {
	Watch    []string      `koanf:"watch"`
	Exclude  []string      `koanf:"exclude"`
	Debounce time.Duration `koanf:"debounce" validate:"gte=0"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
}

// Target returns the target named name.
func (c *Config) Target(name string) (*TargetConfig, bool) {
	for i := range c.Targets {
		if c.Targets[i].Name == name {
			return &c.Targets[i], true
		}
	}
	return nil, false
}

// LoadConfig loads dtogen.yaml from dir or the nearest parent directory that
// has one.
func LoadConfig(dir string) (*Config, error) {
	start := dir
	for {
		for _, name := range FileNames {
			configPath := filepath.Join(dir, name)
			if _, err := os.Stat(configPath); err == nil {
				return LoadConfigFromPath(configPath)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}

	return nil, errors.Configurationf("no dtogen.yaml found in %s or any parent directory", start)
}

// LoadConfigFromPath loads the configuration from a specific file. Values
// come from defaults, then the file, then DTOGEN_* environment variables.
func LoadConfigFromPath(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapIO(err, "failed to resolve config path %s", path)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, errors.WrapIO(err, "failed to read config file")
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.WrapConfiguration(err, "failed to load defaults")
	}
	if err := k.Load(file.Provider(abs), yaml.Parser()); err != nil {
		return nil, errors.WrapConfiguration(err, "failed to parse config file %s", abs)
	}
	if err := k.Load(envprovider.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.WrapConfiguration(err, "failed to load environment variables")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.WrapConfiguration(err, "failed to unmarshal config")
	}
	cfg.Dir = filepath.Dir(abs)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths()
	cfg.applyWatchDefaults()
	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"source.kind":           SourceManifest,
		"max_identifier_length": 63,
		"dev.debounce":          "300ms",
		"dev.exclude":           []string{".git/", "node_modules/"},
		"log.level":             "info",
	}
}

// envKey maps DTOGEN_SOURCE_KIND to source.kind. Only the first underscore
// separates sections, so DTOGEN_MAX_IDENTIFIER_LENGTH stays flat.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if key == "max_identifier_length" || key == "name" {
		return key
	}
	return strings.Replace(key, "_", ".", 1)
}

// Validate checks struct constraints and reports them as configuration
// errors.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return errors.Configurationf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return errors.WrapConfiguration(err, "invalid configuration")
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "unique":
		return field + " must have unique " + strings.ToLower(fe.Param()) + " values"
	case "min":
		return field + " must have at least " + fe.Param() + " entries"
	default:
		return field + " failed " + fe.Tag() + " validation"
	}
}

func (c *Config) resolvePaths() {
	for i, p := range c.Source.Paths {
		c.Source.Paths[i] = c.abs(p)
	}
	for i := range c.Targets {
		for j, p := range c.Targets[i].Paths {
			c.Targets[i].Paths[j] = c.abs(p)
		}
	}
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Dir, p)
}

// applyWatchDefaults sets watch patterns based on the source kind.
func (c *Config) applyWatchDefaults() {
	if len(c.Dev.Watch) > 0 {
		return
	}
	switch c.Source.Kind {
	case SourceManifest:
		c.Dev.Watch = []string{"*.dtogen.yaml", "**/*.dtogen.yaml"}
	case SourceGraphQL:
		c.Dev.Watch = []string{"*.graphql", "**/*.graphql", "*.gql", "**/*.gql"}
	case SourceGo:
		c.Dev.Watch = []string{"*.go", "**/*.go"}
	case SourceProto:
		c.Dev.Watch = []string{"*.binpb", "**/*.binpb", "*.pb.desc", "**/*.pb.desc"}
	}
}
