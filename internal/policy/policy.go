// Package policy loads the static pairing policy: the fixed PIN handed to
// every PIN-code request and the set of services remote devices may use.
package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is used when neither a flag nor EnvPath is set.
	DefaultPath = "/etc/bluegent.conf"
	// EnvPath overrides DefaultPath.
	EnvPath = "BLUEGENT_CONFIG"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrEmptyPIN     = errors.New("pin_code must not be empty")
)

// ConfigError is returned by Load for every failure. There is no partial load.
type ConfigError struct {
	Path string
	Op   string // "read", "parse" or "validate"
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("policy: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// file mirrors the on-disk layout. Pointers distinguish a missing key from
// an empty value.
type file struct {
	PinCode            *string   `toml:"pin_code" yaml:"pin_code"`
	AuthorizedServices *[]string `toml:"authorized_services" yaml:"authorized_services"`
}

// Policy is immutable once loaded and safe for concurrent use.
type Policy struct {
	pin      string
	services map[string]struct{}
}

// New builds a Policy directly. The same validation as Load applies.
func New(pin string, services []string) (*Policy, error) {
	if pin == "" {
		return nil, ErrEmptyPIN
	}
	p := &Policy{pin: pin, services: make(map[string]struct{}, len(services))}
	for _, s := range services {
		p.services[s] = struct{}{}
	}
	return p, nil
}

// ResolvePath picks the policy file: explicit path first, then
// $BLUEGENT_CONFIG, then DefaultPath.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads and validates the policy at path. Files ending in .yaml or .yml
// are YAML; everything else is TOML. Unknown keys are ignored.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Op: "read", Err: err}
	}

	var f file
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = toml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Op: "parse", Err: err}
	}

	if f.PinCode == nil {
		return nil, &ConfigError{Path: path, Op: "validate", Err: fmt.Errorf("%w: pin_code", ErrMissingField)}
	}
	if f.AuthorizedServices == nil {
		return nil, &ConfigError{Path: path, Op: "validate", Err: fmt.Errorf("%w: authorized_services", ErrMissingField)}
	}
	p, err := New(*f.PinCode, *f.AuthorizedServices)
	if err != nil {
		return nil, &ConfigError{Path: path, Op: "validate", Err: err}
	}
	return p, nil
}

// PinCode returns the configured credential verbatim.
func (p *Policy) PinCode() string { return p.pin }

// Authorizes reports whether uuid is in the authorized set. Matching is exact
// and case-sensitive.
func (p *Policy) Authorizes(uuid string) bool {
	_, ok := p.services[uuid]
	return ok
}

// Services returns the authorized set, sorted.
func (p *Policy) Services() []string {
	out := make([]string, 0, len(p.services))
	for s := range p.services {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Lint returns advisory warnings about service ids that will probably never
// match what bluetoothd sends: non-UUIDs and UUIDs not in lowercase
// canonical form. The policy is still used as written.
func (p *Policy) Lint() []string {
	var warnings []string
	for _, s := range p.Services() {
		u, err := uuid.Parse(s)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("authorized service %q is not a UUID", s))
			continue
		}
		if canonical := u.String(); canonical != s {
			warnings = append(warnings, fmt.Sprintf("authorized service %q is not canonical, bluetoothd sends %q", s, canonical))
		}
	}
	return warnings
}
