// Package config parses the gateway's CLI flags and its optional ambient
// settings file. Pool composition (backend URLs, policy choice, probe
// interval) always comes from the command line; the YAML file, when given,
// only ever carries the ambient middleware settings (rate limit, auth,
// circuit breaker) — never backend URLs.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig holds token-bucket settings.
type RateLimitConfig struct {
	MaxTokens  float64 `yaml:"max_tokens"`
	RefillRate float64 `yaml:"refill_rate"`
}

// AuthConfig holds authentication settings. Auth is disabled unless at
// least one API key or a JWT secret is configured.
type AuthConfig struct {
	APIKeys   []string `yaml:"api_keys"`
	JWTSecret string   `yaml:"jwt_secret"`
}

// Enabled reports whether any credential has been configured.
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0 || a.JWTSecret != ""
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Threshold int `yaml:"threshold"`
	Timeout   int `yaml:"timeout"` // seconds
}

// Ambient is the optional, config-file-only settings for the middleware
// chain (SPEC_FULL §12). Everything here has a safe default, so an absent
// --config file is a valid, fully-functional configuration.
type Ambient struct {
	RateLimit      RateLimitConfig      `yaml:"ratelimit"`
	Auth           AuthConfig           `yaml:"auth"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitbreaker"`
}

// defaultAmbient returns the safe defaults used when no --config file is
// given: a generous rate limit, auth disabled, and a circuit breaker with a
// threshold high enough to be effectively disabled.
func defaultAmbient() Ambient {
	return Ambient{
		RateLimit:      RateLimitConfig{MaxTokens: 100, RefillRate: 50},
		CircuitBreaker: CircuitBreakerConfig{Threshold: 1 << 30, Timeout: 30},
	}
}

// LoadAmbient reads and parses an ambient settings file. An empty path is
// not an error — it yields the safe defaults.
func LoadAmbient(path string) (Ambient, error) {
	if path == "" {
		return defaultAmbient(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Ambient{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultAmbient()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Ambient{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Policy selects which selection policy the gateway constructs.
type Policy int

const (
	RoundRobin Policy = iota
	LeastResponse
	GeoAware
)

// Gateway is the fully parsed command line for cmd/gateway.
type Gateway struct {
	Backends            []string
	HealthCheckInterval time.Duration
	Policy              Policy
	GeoDBPath           string
	ConfigPath          string
	Ambient             Ambient
}

// ParseGateway parses args (normally os.Args[1:]) into a Gateway config.
// Argument errors — including a backend URL missing its trailing slash —
// are returned rather than causing an exit, so callers can report to
// stderr and exit non-zero themselves (SPEC_FULL §7).
func ParseGateway(args []string) (Gateway, error) {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)

	var interval int
	fs.IntVar(&interval, "interval-health-check", 10, "seconds between probe ticks")
	fs.IntVar(&interval, "i", 10, "shorthand for --interval-health-check")

	var dynamic bool
	fs.BoolVar(&dynamic, "dynamic", false, "use the least-response policy instead of round-robin")
	fs.BoolVar(&dynamic, "d", false, "shorthand for --dynamic")

	var geoDB string
	fs.StringVar(&geoDB, "geo", "", "path to a MaxMind GeoIP2 Country database")
	fs.StringVar(&geoDB, "g", "", "shorthand for --geo")

	var configPath string
	fs.StringVar(&configPath, "config", "", "path to an ambient settings YAML file")

	if err := fs.Parse(args); err != nil {
		return Gateway{}, err
	}

	backends := fs.Args()
	if len(backends) == 0 {
		return Gateway{}, errors.New("at least one backend URL is required")
	}
	for _, b := range backends {
		if !strings.HasSuffix(b, "/") {
			return Gateway{}, fmt.Errorf("backend URL %q must end with '/'", b)
		}
	}

	policy := RoundRobin
	switch {
	case dynamic && geoDB != "":
		policy = GeoAware
	case dynamic:
		policy = LeastResponse
	}

	ambient, err := LoadAmbient(configPath)
	if err != nil {
		return Gateway{}, err
	}

	return Gateway{
		Backends:            backends,
		HealthCheckInterval: time.Duration(interval) * time.Second,
		Policy:              policy,
		GeoDBPath:           geoDB,
		ConfigPath:          configPath,
		Ambient:             ambient,
	}, nil
}

// Backend is the command line for cmd/backend, the demo origin server.
type Backend struct {
	Port  int
	Name  string
	Delay time.Duration
}

// ParseBackend parses args for the demo backend.
func ParseBackend(args []string) (Backend, error) {
	fs := flag.NewFlagSet("backend", flag.ContinueOnError)

	var port int
	fs.IntVar(&port, "port", 8081, "port to listen on")
	fs.IntVar(&port, "p", 8081, "shorthand for --port")

	var name string
	fs.StringVar(&name, "name", "backend-server", "name reported in responses")
	fs.StringVar(&name, "n", "backend-server", "shorthand for --name")

	var delay time.Duration
	fs.DurationVar(&delay, "delay", 0, "artificial response delay, e.g. 200ms")
	fs.DurationVar(&delay, "d", 0, "shorthand for --delay")

	if err := fs.Parse(args); err != nil {
		return Backend{}, err
	}

	return Backend{Port: port, Name: name, Delay: delay}, nil
}
