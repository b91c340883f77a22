// Package config loads run profiles: YAML documents selecting which
// scenarios run, with what key algorithm, and where the artifacts and
// logs of the run end up.
package config

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/net/idna"
	"gopkg.in/yaml.v3"

	"github.com/securerpc/tlsmatrix/internal/credentials"
	"github.com/securerpc/tlsmatrix/internal/keystore"
	"github.com/securerpc/tlsmatrix/internal/logging"
	"github.com/securerpc/tlsmatrix/internal/scenario"
)

// Names optionally overrides the identities certificates are issued
// for. Empty fields keep the defaults.
type Names struct {
	ServerHost  string `yaml:"server_host,omitempty"`
	Service     string `yaml:"service,omitempty"`
	Client      string `yaml:"client,omitempty"`
	WrongServer string `yaml:"wrong_server,omitempty"`
	WrongClient string `yaml:"wrong_client,omitempty"`
}

// Profile is one run configuration.
type Profile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Algorithm selects the key algorithm for every hierarchy.
	Algorithm string `yaml:"algorithm"`

	// Organization is stamped into every certificate subject.
	Organization string `yaml:"organization"`

	// Workers bounds concurrent connection attempts.
	Workers int `yaml:"workers"`

	// Timeout bounds one attempt, as a duration string like "5s".
	Timeout string `yaml:"timeout"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`

	// AuditLog, when set, appends hash-chained run events there.
	AuditLog string `yaml:"audit_log,omitempty"`

	// ArtifactDir, when set, dumps generated hierarchies there.
	ArtifactDir string `yaml:"artifact_dir,omitempty"`

	Names  Names           `yaml:"names,omitempty"`
	Filter scenario.Filter `yaml:"filter,omitempty"`
}

// Default returns the built-in profile: the full matrix, ECDSA P-256,
// four workers, five second attempts.
func Default() *Profile {
	return &Profile{
		Name:         "default",
		Algorithm:    string(keystore.DefaultAlgorithm),
		Organization: "tlsmatrix",
		Workers:      4,
		Timeout:      "5s",
		LogLevel:     "info",
	}
}

// Load reads a profile from a YAML file. Missing fields keep their
// defaults; the result is validated before it is returned.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks every field that later stages rely on.
func (p *Profile) Validate() error {
	if _, err := keystore.ParseAlgorithm(p.Algorithm); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	if p.Workers < 1 {
		return fmt.Errorf("profile %q: workers must be at least 1", p.Name)
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return fmt.Errorf("profile %q: invalid timeout: %w", p.Name, err)
	}
	if d <= 0 {
		return fmt.Errorf("profile %q: timeout must be positive", p.Name)
	}
	if _, err := logging.ParseLevel(p.LogLevel); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}

	for field, name := range map[string]string{
		"server_host":  p.Names.ServerHost,
		"service":      p.Names.Service,
		"client":       p.Names.Client,
		"wrong_server": p.Names.WrongServer,
		"wrong_client": p.Names.WrongClient,
	} {
		if name == "" {
			continue
		}
		if _, err := idna.Lookup.ToASCII(name); err != nil {
			return fmt.Errorf("profile %q: invalid %s name %q: %w", p.Name, field, name, err)
		}
	}

	if err := p.Filter.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return nil
}

// TimeoutDuration returns the parsed attempt timeout.
func (p *Profile) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// AlgorithmID returns the parsed key algorithm.
func (p *Profile) AlgorithmID() keystore.AlgorithmID {
	alg, err := keystore.ParseAlgorithm(p.Algorithm)
	if err != nil {
		return keystore.DefaultAlgorithm
	}
	return alg
}

// IdentityNames merges the profile's overrides over the defaults.
func (p *Profile) IdentityNames() credentials.Names {
	names := credentials.DefaultNames()
	if p.Names.ServerHost != "" {
		names.ServerHost = p.Names.ServerHost
	}
	if p.Names.Service != "" {
		names.Service = p.Names.Service
	}
	if p.Names.Client != "" {
		names.Client = p.Names.Client
	}
	if p.Names.WrongServer != "" {
		names.WrongServer = p.Names.WrongServer
	}
	if p.Names.WrongClient != "" {
		names.WrongClient = p.Names.WrongClient
	}
	return names
}
