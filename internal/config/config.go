package config

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
	"go4.org/netipx"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Defaults applied when neither the config file nor a flag sets a value.
// The credentials match the appliance's factory defaults.
const (
	DefaultUsername    = "admin"
	DefaultPassword    = "infoblox"
	DefaultWAPIVersion = "1.0"
	DefaultTimeout     = 30 * time.Second
	DefaultComment     = "Managed by host-tool"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "HOST_TOOL_CONFIG"

// RetryConfig is a bounded backoff policy for store calls.
type RetryConfig struct {
	Steps    int           `yaml:"steps"`
	Duration time.Duration `yaml:"duration"`
	Factor   float64       `yaml:"factor"`
	Jitter   float64       `yaml:"jitter"`
}

// Backoff converts the policy for the retrying store. Steps <= 1 disables retries.
func (r RetryConfig) Backoff() wait.Backoff {
	b := wait.Backoff{Steps: r.Steps, Duration: r.Duration, Factor: r.Factor, Jitter: r.Jitter}
	if b.Duration <= 0 {
		b.Duration = 500 * time.Millisecond
	}
	if b.Factor <= 0 {
		b.Factor = 2
	}
	return b
}

// ApplianceConfig holds connection settings for one appliance plus app-level options.
type ApplianceConfig struct {
	Host          string        `yaml:"host"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	WAPIVersion   string        `yaml:"wapi_version"`
	View          string        `yaml:"view"`
	SkipTLSVerify bool          `yaml:"skip_tls_verify"`
	Timeout       time.Duration `yaml:"timeout"`
	Comment       string        `yaml:"comment"`
	Networks      []string      `yaml:"networks"`
	Retry         RetryConfig   `yaml:"retry"`
}

// Default returns the built-in configuration.
func Default() *ApplianceConfig {
	return &ApplianceConfig{
		Username:    DefaultUsername,
		Password:    DefaultPassword,
		WAPIVersion: DefaultWAPIVersion,
		Timeout:     DefaultTimeout,
		Comment:     DefaultComment,
	}
}

// Load reads the config file at path, or at $HOST_TOOL_CONFIG when path is
// empty. With neither set, the defaults are returned.
func Load(path string) (*ApplianceConfig, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from the given file path on top of the defaults.
func LoadFromPath(path string) (*ApplianceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand ${ENV_VAR} references in string values.
	cfg.Host = os.ExpandEnv(cfg.Host)
	cfg.Username = os.ExpandEnv(cfg.Username)
	cfg.Password = os.ExpandEnv(cfg.Password)
	cfg.View = os.ExpandEnv(cfg.View)
	cfg.Comment = os.ExpandEnv(cfg.Comment)

	if _, err := cfg.ManagedNetworks(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings required to talk to the appliance.
func (c *ApplianceConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("config: missing required field 'host'")
	}
	if c.Username == "" {
		return fmt.Errorf("config: missing required field 'username'")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative")
	}
	return nil
}

// ManagedNetworks compiles Networks into a set. It returns nil when no
// networks are configured, meaning every address may be managed.
func (c *ApplianceConfig) ManagedNetworks() (*netipx.IPSet, error) {
	if len(c.Networks) == 0 {
		return nil, nil
	}
	var b netipx.IPSetBuilder
	for _, n := range c.Networks {
		prefix, err := netip.ParsePrefix(n)
		if err != nil {
			addr, aerr := netip.ParseAddr(n)
			if aerr != nil {
				return nil, fmt.Errorf("config: invalid network %q: %w", n, err)
			}
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
		b.AddPrefix(prefix.Masked())
	}
	set, err := b.IPSet()
	if err != nil {
		return nil, fmt.Errorf("config: building managed networks: %w", err)
	}
	return set, nil
}
