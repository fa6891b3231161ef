// Package config loads configuration for AskGrid services from three
// layered sources, resolved in priority order:
//
//	envDefault struct tags  (lowest priority)
//	YAML/JSON config file  (medium priority)
//	Environment variables  (highest priority)
//
// Defaults are baked into the struct definition, a config file supplies
// per-environment overrides, and environment variables (ConfigMaps,
// Secrets, shell exports) always win.
//
// # Struct Tags
//
//   - `env:"VAR_NAME"` — maps the field to an environment variable
//   - `envDefault:"value"` — default applied when the field is zero-valued
//   - `required:"true"` — loading fails if the field is still zero afterwards
//
// File-based loading goes through the yaml/json unmarshalers, so fields
// need `yaml` or `json` tags as well when a config file is used.
//
// # Usage
//
//	type ServerConfig struct {
//	    Host    string        `env:"HOST" envDefault:"0.0.0.0" yaml:"host"`
//	    Port    int           `env:"PORT" envDefault:"8080" yaml:"port" required:"true"`
//	    Timeout time.Duration `env:"TIMEOUT" envDefault:"30s" yaml:"timeout"`
//	}
//
//	cfg := config.MustLoad[ServerConfig](
//	    config.New().WithEnvPrefix("ASKGRID").WithFile("config.yaml"),
//	)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// durationType distinguishes time.Duration fields from plain int64
// during traversal; Duration's Kind() is Int64 but it parses with
// time.ParseDuration rather than strconv.
var durationType = reflect.TypeOf(time.Duration(0))

// Loader resolves configuration into a struct using the layered
// priority order described in the package documentation. Build one
// with [New], customize it with [Loader.WithEnvPrefix] and
// [Loader.WithFile], then call [Loader.Load].
//
// A Loader is not safe for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
}

// New returns a [Loader] that reads environment variables only, with
// no prefix and no config file.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix prepends prefix (uppercased, joined with an
// underscore) to every environment variable name derived from "env"
// tags. With prefix "ASKGRID", a field tagged `env:"PORT"` reads
// ASKGRID_PORT. An empty prefix disables prefixing. Returns the
// Loader for chaining.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets the path of a configuration file. The format is
// chosen by extension: .yaml/.yml parse as YAML, .json as JSON; any
// other extension makes [Loader.Load] fail. A file that does not
// exist is skipped, so deployments may omit it entirely. Paths
// containing ".." are rejected. Returns the Loader for chaining.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load fills the struct pointed to by cfg, applying envDefault tags
// first, then the config file (if any), then environment variables.
// After resolution it enforces `required:"true"` tags and, when cfg
// implements [Validator], calls its Validate method.
//
// cfg must be a non-nil pointer to a struct. Load returns a
// [*agerr.Error] with [agerr.CodeInternalConfiguration] for loading
// failures and [agerr.CodeValidationRequired] or
// [agerr.CodeValidation] for validation failures.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return agerr.New(agerr.CodeInternalConfiguration,
			"config: Load needs a non-nil pointer to a struct")
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return agerr.New(agerr.CodeInternalConfiguration,
			"config: Load needs a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	if err := applyEnv(rv, l.envPrefix); err != nil {
		return err
	}

	return validate(cfg, rv)
}

// MustLoad creates a zero value of T, loads it through the given
// Loader, and returns it, panicking on any error. Intended for
// application startup, where bad configuration should stop the
// process:
//
//	cfg := config.MustLoad[AppConfig](config.New().WithEnvPrefix("ASKGRID"))
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// loadFile reads and unmarshals the configured YAML or JSON file into
// cfg. A missing file is not an error.
func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return agerr.New(agerr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return agerr.Wrapf(err, agerr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return agerr.Wrapf(err, agerr.CodeInternalConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return agerr.Wrapf(err, agerr.CodeInternalConfiguration,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return agerr.Newf(agerr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}

	return nil
}

// applyDefaults walks the struct and assigns envDefault tag values to
// fields that are still zero-valued.
func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("envDefault")
		if tag == "" || !field.IsZero() {
			continue
		}

		if err := setField(field, tag); err != nil {
			return agerr.Wrapf(err, agerr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}

	return nil
}

// applyEnv walks the struct and assigns values from the environment
// variables named by "env" tags. Nested struct tags accumulate into
// the prefix: a struct tagged `env:"DB"` containing a field tagged
// `env:"HOST"` reads <prefix>_DB_HOST.
func applyEnv(rv reflect.Value, prefix string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		envTag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			nested := prefix
			if envTag != "" {
				if nested != "" {
					nested += "_" + envTag
				} else {
					nested = envTag
				}
			}
			if err := applyEnv(field, nested); err != nil {
				return err
			}
			continue
		}

		if envTag == "" {
			continue
		}

		key := envTag
		if prefix != "" {
			key = prefix + "_" + envTag
		}

		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}

		if err := setField(field, val); err != nil {
			return agerr.Wrapf(err, agerr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, key)
		}
	}

	return nil
}

// setField parses value and stores it in field. Supported field types:
// string (including named string types such as postgres.Secret), bool,
// signed integers, time.Duration, float64, and []string
// (comma-separated, whitespace-trimmed).
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("cannot parse float %q: %w", value, err)
		}
		field.SetFloat(f)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		// MakeSlice with the field's own type supports named slice
		// types; reflect.ValueOf([]string) would panic on Set there.
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}

	return nil
}
