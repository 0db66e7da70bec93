package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv() []string { return nil }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rcontract.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Sources{Environ: noEnv})
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:3001", cfg.Endpoint)
	assert.Equal(t, "TestEntrypoint", cfg.FunctionName)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, 30*time.Second, cfg.EnforceTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Zero(t, cfg.MaxRPS)
	assert.False(t, cfg.Credentials.IsSet())
	assert.Empty(t, cfg.TraceDB)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://localhost:4000
region: eu-west-1
poll_interval: 250ms
filter: "create_*"
credentials:
  access_key_id: AKIAFILE
  secret_access_key: file-secret
exports:
  BucketName: my-bucket
`)
	environ := func() []string {
		return []string{
			"RCONTRACT_REGION=ap-south-1",
			"RCONTRACT_MAX_RPS=2.5",
			"RCONTRACT_CREDENTIALS_SESSION_TOKEN=env-session",
			"RCONTRACT_NOT_A_SETTING=ignored",
			"PATH=/usr/bin",
		}
	}

	cfg, err := Load(Sources{
		File:    path,
		Environ: environ,
		Flags:   map[string]any{"region": "us-west-2", "enforce_timeout": "45s"},
	})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:4000", cfg.Endpoint, "file over default")
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval, "file over default")
	assert.Equal(t, "create_*", cfg.Filter)
	assert.Equal(t, 2.5, cfg.MaxRPS, "env over default")
	assert.Equal(t, "us-west-2", cfg.Region, "flag over env over file")
	assert.Equal(t, 45*time.Second, cfg.EnforceTimeout, "flag over default")
	assert.Equal(t, "TestEntrypoint", cfg.FunctionName, "default kept")

	assert.Equal(t, "AKIAFILE", cfg.Credentials.AccessKeyID)
	assert.Equal(t, "file-secret", cfg.Credentials.SecretAccessKey.Value())
	assert.Equal(t, "env-session", cfg.Credentials.SessionToken.Value())
	assert.Equal(t, map[string]string{"BucketName": "my-bucket"}, cfg.Exports)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		environ []string
		errMsg  string
	}{
		{
			name:   "unknown key",
			file:   "endpoint: http://localhost:4000\nendpoitn: typo\n",
			errMsg: "failed to unmarshal configuration",
		},
		{
			name:   "malformed yaml",
			file:   "endpoint: [unclosed\n",
			errMsg: "failed to parse config file",
		},
		{
			name:   "bad url",
			file:   "endpoint: not a url\n",
			errMsg: "endpoint must be a URL",
		},
		{
			name:   "zero poll interval",
			file:   "poll_interval: 0s\n",
			errMsg: "poll_interval must be greater than 0",
		},
		{
			name:   "negative rate",
			file:   "max_rps: -1\n",
			errMsg: "max_rps must be at least 0",
		},
		{
			name:   "empty function name",
			file:   "function_name: \"\"\n",
			errMsg: "function_name is required",
		},
		{
			name:   "secret without key id",
			file:   "credentials:\n  secret_access_key: s3cr3t\n",
			errMsg: "credentials.access_key_id is required when credentials are set",
		},
		{
			name:    "bad duration from env",
			environ: []string{"RCONTRACT_ENFORCE_TIMEOUT=soon"},
			errMsg:  "failed to unmarshal configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Sources{Environ: func() []string { return tt.environ }}
			if tt.file != "" {
				src.File = writeConfig(t, tt.file)
			}
			_, err := Load(src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Sources{File: filepath.Join(t.TempDir(), "absent.yaml"), Environ: noEnv})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_NullValuesKeepDefaults(t *testing.T) {
	path := writeConfig(t, "region:\nendpoint: http://localhost:4000\n")

	cfg, err := Load(Sources{File: path, Environ: noEnv})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)
}

func TestEnvMappings(t *testing.T) {
	got := map[string]string{}
	for _, m := range EnvMappings() {
		got[m.EnvVar] = m.ConfigPath
	}

	assert.Equal(t, "endpoint", got["RCONTRACT_ENDPOINT"])
	assert.Equal(t, "poll_interval", got["RCONTRACT_POLL_INTERVAL"])
	assert.Equal(t, "credentials.secret_access_key", got["RCONTRACT_CREDENTIALS_SECRET_ACCESS_KEY"])
	assert.NotContains(t, got, "RCONTRACT_EXPORTS")

	mappings := EnvMappings()
	for i := 1; i < len(mappings); i++ {
		assert.Less(t, mappings[i-1].EnvVar, mappings[i].EnvVar)
	}
}

func TestSensitive_NeverPrinted(t *testing.T) {
	secret := Sensitive("hunter2")

	assert.Equal(t, "hunter2", secret.Value())
	assert.Equal(t, "[REDACTED]", fmt.Sprint(secret))
	assert.Equal(t, "", Sensitive("").String())

	data, err := json.Marshal(CredentialsConfig{AccessKeyID: "AKIA", SecretAccessKey: secret})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("loaded", "secret", secret, "config", Default())
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "secret=[REDACTED]")
	assert.Contains(t, buf.String(), "config.endpoint=http://127.0.0.1:3001")
}
