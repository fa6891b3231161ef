package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// ===========================================================================
// Test Types
// ===========================================================================

// testSecret mimics postgres.Secret: a named string type whose String
// method redacts the value. Exercises setField on named string types
// without importing the postgres package.
type testSecret string

func (s testSecret) String() string { return "[REDACTED]" }
func (s testSecret) Value() string  { return string(s) }

type serverConfig struct {
	Host    string        `env:"HOST" envDefault:"localhost" yaml:"host" json:"host"`
	Port    int           `env:"PORT" envDefault:"8080" yaml:"port" json:"port"`
	Debug   bool          `env:"DEBUG" envDefault:"false" yaml:"debug" json:"debug"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s" yaml:"timeout" json:"timeout"`
}

type requiredConfig struct {
	Name string `env:"NAME" required:"true"`
	Port int    `env:"PORT"`
}

type nestedConfig struct {
	App      string      `env:"APP"`
	Database dbSubConfig `env:"DB"`
}

type dbSubConfig struct {
	Host     string     `env:"HOST" yaml:"host" json:"host"`
	Port     int        `env:"PORT" yaml:"port" json:"port"`
	Password testSecret `env:"PASSWORD"`
}

type sliceConfig struct {
	Algorithms []string `env:"ALGORITHMS" envDefault:"RS256,ES256"`
}

type floatConfig struct {
	ScoreThreshold float64 `env:"SCORE_THRESHOLD" envDefault:"0.35"`
}

type validatableConfig struct {
	Host string `env:"HOST"`
	Port int    `env:"PORT"`
}

func (c *validatableConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return agerr.Newf(agerr.CodeValidationRange,
			"config: port %d is out of range [1, 65535]", c.Port)
	}
	return nil
}

type validatableStdlibConfig struct {
	Name string `env:"NAME"`
}

func (c *validatableStdlibConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// writeTestFile creates a file in the test's temp directory and
// returns its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writeTestFile() error: %v", err)
	}
	return path
}

// ===========================================================================
// Loader Construction
// ===========================================================================

func TestNew_ReturnsNonNilLoader(t *testing.T) {
	if New() == nil {
		t.Fatal("New() returned nil")
	}
}

func TestLoader_WithEnvPrefix_Uppercased(t *testing.T) {
	l := New().WithEnvPrefix("askgrid")
	if l.envPrefix != "ASKGRID" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "ASKGRID")
	}
}

// ===========================================================================
// Argument Validation
// ===========================================================================

func TestLoader_Load_NilPointer(t *testing.T) {
	var cfg *serverConfig
	err := New().Load(cfg)
	if !agerr.HasCode(err, agerr.CodeInternalConfiguration) {
		t.Fatalf("Load(nil pointer) error = %v, want %s", err, agerr.CodeInternalConfiguration)
	}
}

func TestLoader_Load_NonPointer(t *testing.T) {
	err := New().Load(serverConfig{})
	if !agerr.HasCode(err, agerr.CodeInternalConfiguration) {
		t.Fatalf("Load(non-pointer) error = %v, want %s", err, agerr.CodeInternalConfiguration)
	}
}

func TestLoader_Load_PointerToNonStruct(t *testing.T) {
	n := 42
	err := New().Load(&n)
	if !agerr.HasCode(err, agerr.CodeInternalConfiguration) {
		t.Fatalf("Load(*int) error = %v, want %s", err, agerr.CodeInternalConfiguration)
	}
}

// ===========================================================================
// Defaults
// ===========================================================================

func TestLoader_Load_Defaults_Applied(t *testing.T) {
	var cfg serverConfig
	if err := New().Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Host != "localhost" {
		t.Errorf("Host = %q, want %q", cfg.Host, "localhost")
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
}

func TestLoader_Load_Defaults_NotOverwriteExisting(t *testing.T) {
	cfg := serverConfig{Host: "prefilled"}
	if err := New().Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "prefilled" {
		t.Errorf("Host = %q, want %q", cfg.Host, "prefilled")
	}
}

func TestLoader_Load_Defaults_Slice(t *testing.T) {
	var cfg sliceConfig
	if err := New().Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Algorithms) != 2 || cfg.Algorithms[0] != "RS256" || cfg.Algorithms[1] != "ES256" {
		t.Errorf("Algorithms = %v, want [RS256 ES256]", cfg.Algorithms)
	}
}

func TestLoader_Load_Defaults_Float(t *testing.T) {
	var cfg floatConfig
	if err := New().Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ScoreThreshold != 0.35 {
		t.Errorf("ScoreThreshold = %v, want 0.35", cfg.ScoreThreshold)
	}
}

// ===========================================================================
// File Loading
// ===========================================================================

func TestLoader_Load_YAMLFile(t *testing.T) {
	path := writeTestFile(t, "config.yaml", "host: files.example.com\nport: 9090\n")

	var cfg serverConfig
	if err := New().WithFile(path).Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Host != "files.example.com" {
		t.Errorf("Host = %q, want %q", cfg.Host, "files.example.com")
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	// Defaults still fill fields the file omits.
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
}

func TestLoader_Load_JSONFile(t *testing.T) {
	path := writeTestFile(t, "config.json", `{"host": "json.example.com", "port": 7070}`)

	var cfg serverConfig
	if err := New().WithFile(path).Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "json.example.com" || cfg.Port != 7070 {
		t.Errorf("cfg = %+v, want host json.example.com port 7070", cfg)
	}
}

func TestLoader_Load_MissingFile_NoError(t *testing.T) {
	var cfg serverConfig
	err := New().WithFile(filepath.Join(t.TempDir(), "absent.yaml")).Load(&cfg)
	if err != nil {
		t.Fatalf("Load() with missing file error: %v", err)
	}
	if cfg.Host != "localhost" {
		t.Errorf("Host = %q, want default %q", cfg.Host, "localhost")
	}
}

func TestLoader_Load_UnsupportedExtension(t *testing.T) {
	path := writeTestFile(t, "config.toml", "host = 'x'\n")

	var cfg serverConfig
	err := New().WithFile(path).Load(&cfg)
	if !agerr.HasCode(err, agerr.CodeInternalConfiguration) {
		t.Fatalf("Load(.toml) error = %v, want %s", err, agerr.CodeInternalConfiguration)
	}
}

func TestLoader_Load_DirectoryTraversal(t *testing.T) {
	var cfg serverConfig
	err := New().WithFile("../../etc/passwd.yaml").Load(&cfg)
	if !agerr.HasCode(err, agerr.CodeInternalConfiguration) {
		t.Fatalf("Load(traversal path) error = %v, want %s", err, agerr.CodeInternalConfiguration)
	}
}

func TestLoader_Load_InvalidYAML_File(t *testing.T) {
	path := writeTestFile(t, "bad.yaml", "host: [unterminated\n")

	var cfg serverConfig
	err := New().WithFile(path).Load(&cfg)
	if !agerr.HasCode(err, agerr.CodeInternalConfiguration) {
		t.Fatalf("Load(bad yaml) error = %v, want %s", err, agerr.CodeInternalConfiguration)
	}
}

// ===========================================================================
// Environment Variables
// ===========================================================================

func TestLoader_Load_EnvOverridesFile(t *testing.T) {
	path := writeTestFile(t, "config.yaml", "host: from-file\n")
	t.Setenv("HOST", "from-env")

	var cfg serverConfig
	if err := New().WithFile(path).Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "from-env" {
		t.Errorf("Host = %q, want %q", cfg.Host, "from-env")
	}
}

func TestLoader_Load_EnvPrefix(t *testing.T) {
	t.Setenv("ASKGRID_HOST", "prefixed.example.com")
	t.Setenv("HOST", "unprefixed")

	var cfg serverConfig
	if err := New().WithEnvPrefix("askgrid").Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "prefixed.example.com" {
		t.Errorf("Host = %q, want %q", cfg.Host, "prefixed.example.com")
	}
}

func TestLoader_Load_NestedStruct_Env(t *testing.T) {
	t.Setenv("APP", "askgrid")
	t.Setenv("DB_HOST", "pg.internal")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_PASSWORD", "hunter2")

	var cfg nestedConfig
	if err := New().Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Database.Host != "pg.internal" || cfg.Database.Port != 5432 {
		t.Errorf("Database = %+v, want host pg.internal port 5432", cfg.Database)
	}
	if cfg.Database.Password.Value() != "hunter2" {
		t.Errorf("Password.Value() = %q, want %q", cfg.Database.Password.Value(), "hunter2")
	}
	if cfg.Database.Password.String() != "[REDACTED]" {
		t.Errorf("Password.String() = %q, want redacted", cfg.Database.Password.String())
	}
}

func TestLoader_Load_SliceFromEnv(t *testing.T) {
	t.Setenv("ALGORITHMS", " RS256 , ES256 , EdDSA ")

	var cfg sliceConfig
	if err := New().Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{"RS256", "ES256", "EdDSA"}
	if len(cfg.Algorithms) != len(want) {
		t.Fatalf("Algorithms = %v, want %v", cfg.Algorithms, want)
	}
	for i := range want {
		if cfg.Algorithms[i] != want[i] {
			t.Errorf("Algorithms[%d] = %q, want %q", i, cfg.Algorithms[i], want[i])
		}
	}
}

func TestLoader_Load_InvalidInt_FromEnv(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	var cfg serverConfig
	err := New().Load(&cfg)
	if !agerr.HasCode(err, agerr.CodeInternalConfiguration) {
		t.Fatalf("Load(bad int) error = %v, want %s", err, agerr.CodeInternalConfiguration)
	}
}

func TestLoader_Load_InvalidDuration_FromEnv(t *testing.T) {
	t.Setenv("TIMEOUT", "thirty seconds")

	var cfg serverConfig
	err := New().Load(&cfg)
	if !agerr.HasCode(err, agerr.CodeInternalConfiguration) {
		t.Fatalf("Load(bad duration) error = %v, want %s", err, agerr.CodeInternalConfiguration)
	}
}

// ===========================================================================
// Required Fields and Validator
// ===========================================================================

func TestLoader_Load_RequiredField_Missing(t *testing.T) {
	var cfg requiredConfig
	err := New().Load(&cfg)
	if !agerr.HasCode(err, agerr.CodeValidationRequired) {
		t.Fatalf("Load() error = %v, want %s", err, agerr.CodeValidationRequired)
	}
	if !strings.Contains(err.Error(), "Name") {
		t.Errorf("error %q does not name the missing field", err.Error())
	}
}

func TestLoader_Load_RequiredField_Set(t *testing.T) {
	t.Setenv("NAME", "askgrid")

	var cfg requiredConfig
	if err := New().Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
}

func TestLoader_Load_Validator_ReturnsError(t *testing.T) {
	t.Setenv("PORT", "99999")

	var cfg validatableConfig
	err := New().Load(&cfg)
	if !agerr.HasCode(err, agerr.CodeValidationRange) {
		t.Fatalf("Load() error = %v, want %s", err, agerr.CodeValidationRange)
	}
}

func TestLoader_Load_Validator_StdlibErrorWrapped(t *testing.T) {
	var cfg validatableStdlibConfig
	err := New().Load(&cfg)
	if !agerr.HasCode(err, agerr.CodeValidation) {
		t.Fatalf("Load() error = %v, want %s", err, agerr.CodeValidation)
	}
}

func TestLoader_Load_Validator_Passes(t *testing.T) {
	t.Setenv("PORT", "8080")

	var cfg validatableConfig
	if err := New().Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
}

// ===========================================================================
// Priority Order and MustLoad
// ===========================================================================

func TestLoader_Load_PriorityOrder(t *testing.T) {
	path := writeTestFile(t, "config.yaml", "host: from-file\nport: 9001\n")
	t.Setenv("PORT", "9002")

	var cfg serverConfig
	if err := New().WithFile(path).Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// File beats default, env beats file, untouched fields keep defaults.
	if cfg.Host != "from-file" {
		t.Errorf("Host = %q, want %q", cfg.Host, "from-file")
	}
	if cfg.Port != 9002 {
		t.Errorf("Port = %d, want 9002", cfg.Port)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want default 30s", cfg.Timeout)
	}
}

func TestMustLoad_Success(t *testing.T) {
	cfg := MustLoad[serverConfig](New())
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
}

func TestMustLoad_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad did not panic on required-field failure")
		}
	}()
	_ = MustLoad[requiredConfig](New())
}
