// Package config loads rcontract settings. Sources are layered with
// increasing precedence: built-in defaults, an optional YAML file,
// RCONTRACT_* environment variables, then explicitly set command-line
// flags. The result is validated before use.
package config

import (
	"encoding/json"
	"log/slog"
	"time"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "RCONTRACT_"

// Config holds everything needed to run a suite against a handler.
type Config struct {
	Endpoint       string        `koanf:"endpoint"        env:"ENDPOINT"        validate:"required,url"`
	FunctionName   string        `koanf:"function_name"   env:"FUNCTION_NAME"   validate:"required"`
	Region         string        `koanf:"region"          env:"REGION"          validate:"required"`
	RoleARN        string        `koanf:"role_arn"        env:"ROLE_ARN"`
	EnforceTimeout time.Duration `koanf:"enforce_timeout" env:"ENFORCE_TIMEOUT" validate:"gt=0"`
	PollInterval   time.Duration `koanf:"poll_interval"   env:"POLL_INTERVAL"   validate:"gt=0"`
	RequestTimeout time.Duration `koanf:"request_timeout" env:"REQUEST_TIMEOUT" validate:"gt=0"`
	MaxRPS         float64       `koanf:"max_rps"         env:"MAX_RPS"         validate:"gte=0"`

	Credentials CredentialsConfig `koanf:"credentials"`

	Overrides    string `koanf:"overrides"     env:"OVERRIDES"`
	InputsDir    string `koanf:"inputs_dir"    env:"INPUTS_DIR"`
	ScenariosDir string `koanf:"scenarios_dir" env:"SCENARIOS_DIR"`
	TraceDB      string `koanf:"trace_db"      env:"TRACE_DB"`
	Filter       string `koanf:"filter"        env:"FILTER"`

	// Exports are template variables for the overrides file.
	Exports map[string]string `koanf:"exports"`
}

// CredentialsConfig are the caller credentials forwarded to the handler.
type CredentialsConfig struct {
	AccessKeyID     string    `koanf:"access_key_id"     env:"CREDENTIALS_ACCESS_KEY_ID"     validate:"required_with=SecretAccessKey"`
	SecretAccessKey Sensitive `koanf:"secret_access_key" env:"CREDENTIALS_SECRET_ACCESS_KEY" validate:"required_with=AccessKeyID"`
	SessionToken    Sensitive `koanf:"session_token"     env:"CREDENTIALS_SESSION_TOKEN"`
}

// IsSet reports whether credentials were configured.
func (c CredentialsConfig) IsSet() bool {
	return c.AccessKeyID != ""
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Endpoint:       "http://127.0.0.1:3001",
		FunctionName:   "TestEntrypoint",
		Region:         "us-east-1",
		EnforceTimeout: 30 * time.Second,
		PollInterval:   time.Second,
		RequestTimeout: 60 * time.Second,
		Exports:        map[string]string{},
	}
}

// LogValue implements slog.LogValuer.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", c.Endpoint),
		slog.String("function_name", c.FunctionName),
		slog.String("region", c.Region),
		slog.Duration("enforce_timeout", c.EnforceTimeout),
		slog.Duration("poll_interval", c.PollInterval),
		slog.Float64("max_rps", c.MaxRPS),
		slog.Bool("credentials", c.Credentials.IsSet()),
		slog.String("trace_db", c.TraceDB),
	)
}

const redacted = "[REDACTED]"

// Sensitive is a string that never appears in logs or serialized output.
type Sensitive string

// Value returns the secret.
func (s Sensitive) Value() string { return string(s) }

// String implements fmt.Stringer.
func (s Sensitive) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// LogValue implements slog.LogValuer.
func (s Sensitive) LogValue() slog.Value { return slog.StringValue(s.String()) }

// MarshalJSON implements json.Marshaler.
func (s Sensitive) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }
