package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/silver-run/internal/validator"
)

// Precondition failures. They are reported before any external process starts.
var (
	ErrMissingLiberty    = errors.New("liberty library not found")
	ErrMissingAttributes = errors.New("attributes file not found")
	ErrNoRoot            = errors.New("tool root not found")
)

// RootEnv overrides the tool root directory.
const RootEnv = "SILVER_ROOT"

// Config is the top-level configuration for silver-run
type Config struct {
	// Root is the SILVER installation holding yosys/LIB, bin, bin_debug and cell.
	Root string `json:"root,omitempty"`

	// Yosys is the synthesis engine executable
	Yosys string `json:"yosys,omitempty"`

	// Liberty overrides <root>/yosys/LIB/custom_cells.lib (relative to root if not absolute)
	Liberty string `json:"liberty,omitempty"`

	// Mode is "none", "flatten" or "full"
	Mode string `json:"mode,omitempty"`

	// SVFrontend is "slang" (plugin) or "builtin" (read_verilog -sv)
	SVFrontend string `json:"svFrontend,omitempty"`

	// AttributeName is the attribute set from the attributes file
	AttributeName string `json:"attributeName,omitempty"`

	// Sources are glob patterns used when no sources are given on the command line
	Sources []string `json:"sources,omitempty"`

	// Parameters override top-level module parameters
	Parameters map[string]Scalar `json:"parameters,omitempty"`

	// Defines are preprocessor defines; a null value defines the name only
	Defines map[string]*Scalar `json:"defines,omitempty"`

	// Quiet sends engine output to yosys.log. Defaults to true; -v overrides it.
	Quiet *bool `json:"quiet,omitempty"`

	// Timing writes stage timings as JSONL
	Timing     bool   `json:"timing,omitempty"`
	TimingPath string `json:"timingPath,omitempty"`

	// Verifier configures the SILVER invocation
	Verifier VerifierConfig `json:"verifier,omitempty"`
}

// VerifierConfig controls the verifier invocation
type VerifierConfig struct {
	// Debug selects bin_debug/verify_debug over bin/verify
	Debug bool `json:"debug,omitempty"`

	// Verbose passes --verbose 1. Defaults to true.
	Verbose *bool `json:"verbose,omitempty"`

	// InsFile overrides <run dir>/<top>.nl
	InsFile string `json:"insFile,omitempty"`

	// LibFile overrides <root>/cell/Library.txt
	LibFile string `json:"libFile,omitempty"`
}

// Scalar is a parameter or define value. JSON numbers, strings and booleans
// are all accepted and kept in their textual form.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = Scalar(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = Scalar(num.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*s = "1"
		} else {
			*s = "0"
		}
		return nil
	}
	return fmt.Errorf("scalar value expected, got %s", string(data))
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./silver_run.json
//  2. ./.silver_run.json
//  3. ./silver_run.hcl
//  4. ~/.config/silver_run/config.json
//
// Returns DefaultConfig if no config file is found
func Load() (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "silver_run.json"),
		filepath.Join(cwd, ".silver_run.json"),
		filepath.Join(cwd, "silver_run.hcl"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "silver_run", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific JSON or HCL file
func LoadFile(path string) (*Config, error) {
	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("init validator: %w", err)
	}

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		cfg, err = loadHCL(path)
		if err != nil {
			return nil, err
		}
		if err := v.ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := v.ValidateConfigJSON(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cfg = &Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.Yosys == "" {
		c.Yosys = "yosys"
	}
	if c.Mode == "" {
		c.Mode = "flatten"
	}
	if c.SVFrontend == "" {
		c.SVFrontend = "slang"
	}
	if c.AttributeName == "" {
		c.AttributeName = "SILVER"
	}
	if c.Quiet == nil {
		c.Quiet = boolPtr(true)
	}
	if c.Verifier.Verbose == nil {
		c.Verifier.Verbose = boolPtr(true)
	}
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ResolveRoot returns the tool root: the configured root, then $SILVER_ROOT,
// then the directory holding the running executable.
func (c *Config) ResolveRoot() (string, error) {
	if c.Root != "" {
		return filepath.Abs(c.Root)
	}
	if env := os.Getenv(RootEnv); env != "" {
		return filepath.Abs(env)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoRoot, err)
	}
	return filepath.Dir(exe), nil
}

// LibertyPath returns the cell library used for mapping.
func (c *Config) LibertyPath(root string) string {
	if c.Liberty == "" {
		return filepath.Join(root, "yosys", "LIB", "custom_cells.lib")
	}
	if filepath.IsAbs(c.Liberty) {
		return c.Liberty
	}
	return filepath.Join(root, c.Liberty)
}

// CheckLiberty fails with ErrMissingLiberty unless the cell library exists.
func (c *Config) CheckLiberty(root string) (string, error) {
	path := c.LibertyPath(root)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrMissingLiberty, path)
	}
	return path, nil
}

// VerifierBinary returns the verifier executable for the configured variant.
func (c *Config) VerifierBinary(root string) string {
	if c.Verifier.Debug {
		return filepath.Join(root, "bin_debug", "verify_debug")
	}
	return filepath.Join(root, "bin", "verify")
}

// VerifierLibrary returns the cell description file handed to the verifier.
func (c *Config) VerifierLibrary(root string) string {
	if c.Verifier.LibFile == "" {
		return filepath.Join(root, "cell", "Library.txt")
	}
	if filepath.IsAbs(c.Verifier.LibFile) {
		return c.Verifier.LibFile
	}
	return filepath.Join(root, c.Verifier.LibFile)
}

// VerifierVerbose reports whether --verbose 1 is passed.
func (c *Config) VerifierVerbose() bool {
	return c.Verifier.Verbose == nil || *c.Verifier.Verbose
}

// EngineQuiet reports whether engine output goes to the log file.
func (c *Config) EngineQuiet() bool {
	return c.Quiet == nil || *c.Quiet
}

// ParameterNames returns parameter names sorted, which fixes the -chparam order.
func (c *Config) ParameterNames() []string {
	names := make([]string, 0, len(c.Parameters))
	for k := range c.Parameters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DefineNames returns define names sorted, which fixes the -D order.
func (c *Config) DefineNames() []string {
	names := make([]string, 0, len(c.Defines))
	for k := range c.Defines {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
