package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/rr-fwmgr/internal/fw/common/validate"
)

// Appliance drivers.
const (
	DriverPfSense = "pfsense"
	DriverMemory  = "memory"
)

// AppConfig is the full daemon configuration.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env       string          `koanf:"env" validate:"required,oneof=dev prod"`
	Log       LoggingConfig   `koanf:"log"`
	HTTP      HTTPConfig      `koanf:"http"`
	Appliance ApplianceConfig `koanf:"appliance"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	DHCP      DHCPConfig      `koanf:"dhcp"`
}

// LoggingConfig controls log verbosity: "debug", "info", "warn", or "error".
type LoggingConfig struct {
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Port         int           `koanf:"port" validate:"required,gte=1,lt=65536"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
}

// ApplianceConfig selects and configures the firewall backend.
type ApplianceConfig struct {
	Driver           string        `koanf:"driver" validate:"required,oneof=pfsense memory"`
	URL              string        `koanf:"url" validate:"required_if=Driver pfsense,omitempty,url"`
	Username         string        `koanf:"username" validate:"required_if=Driver pfsense"`
	Password         string        `koanf:"password" validate:"required_if=Driver pfsense"`
	InsecureTLS      bool          `koanf:"insecure_tls"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	BlockedAlias     string        `koanf:"blocked_alias" validate:"required,alias_name"`
	ProtectedAliases []string      `koanf:"protected_aliases" validate:"dive,alias_name"`
	DHCPInterface    string        `koanf:"dhcp_interface" validate:"required"`
}

// AuthConfig configures the single admin login. An empty TokenSecret signs tokens
// with the admin password.
type AuthConfig struct {
	AdminPassword string        `koanf:"admin_password"`
	TokenSecret   string        `koanf:"token_secret"`
	TokenTTL      time.Duration `koanf:"token_ttl" validate:"gt=0"`
}

// SigningKey returns the key used for login tokens.
func (a AuthConfig) SigningKey() []byte {
	if a.TokenSecret != "" {
		return []byte(a.TokenSecret)
	}
	return []byte(a.AdminPassword)
}

// RateLimitConfig bounds requests per client address.
type RateLimitConfig struct {
	Requests int           `koanf:"requests" validate:"required,gte=1"`
	Window   time.Duration `koanf:"window" validate:"gt=0"`
	Clients  int           `koanf:"clients" validate:"required,gte=1"`
}

// DHCPConfig describes the address plan static reservations are checked against.
type DHCPConfig struct {
	Subnet    string `koanf:"subnet" validate:"required,cidrv4"`
	PoolStart string `koanf:"pool_start" validate:"required,ipv4"`
	PoolEnd   string `koanf:"pool_end" validate:"required,ipv4"`
}

// DEFAULT_APP_CONFIG holds the values used when no environment override is present.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	HTTP: HTTPConfig{
		Port:         3000,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	},
	Appliance: ApplianceConfig{
		Driver:           DriverPfSense,
		URL:              "https://192.168.1.1",
		Username:         "admin",
		InsecureTLS:      true,
		Timeout:          10 * time.Second,
		BlockedAlias:     "BLOCKED",
		ProtectedAliases: []string{"LAN_NET", "WAN_NET"},
		DHCPInterface:    "lan",
	},
	Auth: AuthConfig{TokenTTL: 12 * time.Hour},
	RateLimit: RateLimitConfig{
		Requests: 100,
		Window:   15 * time.Minute,
		Clients:  4096,
	},
	DHCP: DHCPConfig{
		Subnet:    "192.168.1.0/24",
		PoolStart: "192.168.1.100",
		PoolEnd:   "192.168.1.199",
	},
}

// envPrefix scopes every variable this service reads.
const envPrefix = "FW_"

// envKeys maps environment variable names (without prefix) to config keys.
// Variables not listed here are ignored.
var envKeys = map[string]string{
	"ENV":                    "env",
	"LOG_LEVEL":              "log.level",
	"HTTP_PORT":              "http.port",
	"HTTP_READ_TIMEOUT":      "http.read_timeout",
	"HTTP_WRITE_TIMEOUT":     "http.write_timeout",
	"APPLIANCE_DRIVER":       "appliance.driver",
	"APPLIANCE_URL":          "appliance.url",
	"APPLIANCE_USERNAME":     "appliance.username",
	"APPLIANCE_PASSWORD":     "appliance.password",
	"APPLIANCE_INSECURE_TLS": "appliance.insecure_tls",
	"APPLIANCE_TIMEOUT":      "appliance.timeout",
	"BLOCKED_ALIAS":          "appliance.blocked_alias",
	"PROTECTED_ALIASES":      "appliance.protected_aliases",
	"DHCP_INTERFACE":         "appliance.dhcp_interface",
	"ADMIN_PASSWORD":         "auth.admin_password",
	"TOKEN_SECRET":           "auth.token_secret",
	"TOKEN_TTL":              "auth.token_ttl",
	"RATELIMIT_REQUESTS":     "ratelimit.requests",
	"RATELIMIT_WINDOW":       "ratelimit.window",
	"RATELIMIT_CLIENTS":      "ratelimit.clients",
	"DHCP_SUBNET":            "dhcp.subnet",
	"DHCP_POOL_START":        "dhcp.pool_start",
	"DHCP_POOL_END":          "dhcp.pool_end",
}

// listKeys are split on commas and whitespace.
var listKeys = map[string]bool{
	"appliance.protected_aliases": true,
}

// transformEnv maps one FW_ variable to its config key. An empty key drops it.
func transformEnv(key, value string) (string, any) {
	name, ok := envKeys[strings.TrimPrefix(key, envPrefix)]
	if !ok {
		return "", nil
	}
	value = strings.TrimSpace(value)
	if listKeys[name] {
		return name, strings.FieldsFunc(value, func(r rune) bool {
			return r == ' ' || r == ','
		})
	}
	return name, value
}

// dotenvLoader reads a .env file into the process environment without overriding
// variables that are already set. A missing file is not an error.
var dotenvLoader = func() error {
	path := os.Getenv(envPrefix + "ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// envLoader loads FW_ variables into k and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: transformEnv,
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation adds the project's custom tags to v.
var registerValidation = func(v *validator.Validate) error {
	return validate.Register(v)
}

// Load builds the configuration from defaults, an optional .env file and FW_
// variables, then validates it.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := dotenvLoader(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(v); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// check enforces rules that span sections.
func (c *AppConfig) check() error {
	if c.Auth.AdminPassword == "" {
		return errors.New("auth.admin_password is required")
	}
	return nil
}
