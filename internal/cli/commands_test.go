package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rcontract/internal/contract"
	"github.com/roach88/rcontract/internal/store"
	"github.com/roach88/rcontract/internal/testutil"
)

// executeCommand runs the root command with args and returns stdout and
// stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeSchema writes an embedded test schema into a temp dir.
func writeSchema(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, testutil.SchemaBytes(t, name), 0o644))
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newHandlerServer serves handler over the invoke API.
func newHandlerServer(t *testing.T, handler contract.Transport) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req contract.HandlerRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		event, err := handler.Invoke(r.Context(), req)
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(event))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func TestValidateCommand(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)

	out, _, err := executeCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Test::Widget::Thing is valid")
	assert.Contains(t, out, "primary identifier: /properties/Name")
	assert.Contains(t, out, "handlers:           create, delete, list, read, update")
}

func TestValidateCommand_JSON(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)

	out, _, err := executeCommand(t, "validate", path, "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "Test::Widget::Thing", data["type_name"])
	assert.Len(t, data["schema_hash"], 64)
	assert.Equal(t, []any{"/properties/Arn"}, data["read_only"])
}

func TestValidateCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		wantCode string
	}{
		{
			name:     "undecodable file",
			schema:   `{"typeName": `,
			wantCode: ErrCodeLoad,
		},
		{
			name:     "dangling reference",
			schema:   `{"typeName": "Test::Widget::Thing", "properties": {"Name": {"$ref": "#/definitions/missing"}}, "primaryIdentifier": ["/properties/Name"]}`,
			wantCode: ErrCodeSchema,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "schema.json", tt.schema)

			out, _, err := executeCommand(t, "validate", path, "--format", "json")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeResponse(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestValidateCommand_MissingFile(t *testing.T) {
	_, _, err := executeCommand(t, "validate", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestNormalizeCommand(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)

	out, _, err := executeCommand(t, "normalize", path)
	require.NoError(t, err)

	var m map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Contains(t, m, "#")
	assert.Contains(t, m, "#/definitions/config")
	assert.NotContains(t, m["#"], "definitions")
}

func TestNormalizeCommand_Pointer(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)

	out, _, err := executeCommand(t, "normalize", path, "--pointer", "#/definitions/config")
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, "object", entry["type"])
	assert.ElementsMatch(t, []any{"Port", "Mode"}, entry["required"])

	_, _, err = executeCommand(t, "normalize", path, "--pointer", "#/definitions/missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExampleCommand(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)

	out, _, err := executeCommand(t, "example", path)
	require.NoError(t, err)

	var model map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &model))
	assert.Contains(t, model, "Name")
	assert.Contains(t, model, "Config")
	assert.NotContains(t, model, "Arn")
}

func TestExampleCommand_Kinds(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)

	out, _, err := executeCommand(t, "example", path, "--kind", "invalid", "--format", "json")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "invalid", data["kind"])
	assert.Contains(t, data["model"], "Arn")

	_, _, err = executeCommand(t, "example", path, "--kind", "delete")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExampleCommand_OverridesWithExports(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)
	overrides := writeFile(t, "overrides.json", `{"CREATE": {"/Name": "{{ upper .Prefix }}-widget", "/Size": 99}}`)

	out, stderr, err := executeCommand(t, "example", path,
		"--overrides", overrides,
		"--export", "Prefix=abc",
		"--format", "json",
	)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	model := data["model"].(map[string]any)
	assert.Equal(t, "ABC-widget", model["Name"])
	assert.Equal(t, float64(99), model["Size"])
	assert.NotEmpty(t, data["violations"], "Size is above the schema maximum")
	assert.Contains(t, stderr, "example does not match schema")
}

func TestTestCommand_ConformingHandler(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)
	handler := testutil.NewMemoryHandler(testutil.WidgetType(t))
	srv := newHandlerServer(t, handler)
	traceDB := filepath.Join(t.TempDir(), "trace.db")

	out, _, err := executeCommand(t, "test", path,
		"--endpoint", srv.URL,
		"--poll-interval", "10ms",
		"--trace-db", traceDB,
		"--label", "ci",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ create_delete")
	assert.Contains(t, out, "✓ create_read_success")
	assert.Contains(t, out, "0 failed")
	assert.Zero(t, handler.Len(), "every fixture is torn down")

	st, err := store.Open(traceDB)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.LatestRun(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Test::Widget::Thing", run.TypeName)
	assert.Equal(t, "ci", run.Label)

	records, err := st.ReadScenario(t.Context(), run.ID, "create_delete")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CREATE", records[0].Action)
	assert.Equal(t, "DELETE", records[1].Action)
}

func TestTestCommand_FilterAndJSON(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)
	srv := newHandlerServer(t, testutil.NewMemoryHandler(testutil.WidgetType(t)))

	out, _, err := executeCommand(t, "test", path,
		"--endpoint", srv.URL,
		"--filter", "create_delete",
		"--format", "json",
	)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.NotEmpty(t, data["run_id"])
	report := data["report"].(map[string]any)
	results := report["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "create_delete", results[0].(map[string]any)["name"])
	assert.Equal(t, map[string]any{"pass": float64(1), "fail": float64(0), "skip": float64(0)}, report["summary"])
}

func TestTestCommand_NonConformingHandler(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)
	// Reports success for everything, so the duplicate create is never rejected.
	srv := newHandlerServer(t, contract.TransportFunc(func(_ context.Context, req contract.HandlerRequest) (contract.ProgressEvent, error) {
		return contract.ProgressEvent{Status: contract.StatusSuccess, ResourceModel: req.RequestData.ResourceProperties}, nil
	}))

	out, _, err := executeCommand(t, "test", path,
		"--endpoint", srv.URL,
		"--filter", "create_duplicate",
		"--format", "json",
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFailed, resp.Error.Code)
}

func TestTestCommand_InvalidConfig(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)

	_, _, err := executeCommand(t, "test", path, "--endpoint", "not a url")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "endpoint must be a URL")
}

func TestTraceCommand(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)
	srv := newHandlerServer(t, testutil.NewMemoryHandler(testutil.WidgetType(t)))
	traceDB := filepath.Join(t.TempDir(), "trace.db")

	_, _, err := executeCommand(t, "test", path,
		"--endpoint", srv.URL,
		"--filter", "create_delete",
		"--trace-db", traceDB,
	)
	require.NoError(t, err)

	out, _, err := executeCommand(t, "trace", traceDB)
	require.NoError(t, err)
	assert.Contains(t, out, "Test::Widget::Thing")
	assert.Contains(t, out, "=== create_delete ===")
	assert.Contains(t, out, "CREATE SUCCESS")
	assert.Contains(t, out, "DELETE SUCCESS")

	out, _, err = executeCommand(t, "trace", traceDB, "--scenario", "create_delete", "--format", "json")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Len(t, data["exchanges"], 2)

	out, _, err = executeCommand(t, "trace", traceDB, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "Test::Widget::Thing")
}

func TestTraceCommand_Errors(t *testing.T) {
	_, _, err := executeCommand(t, "trace", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	empty := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(empty)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, _, err = executeCommand(t, "trace", empty)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNoRuns)

	_, _, err = executeCommand(t, "trace", empty, "--run", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run nope not found")
}

func TestTestCommand_CustomScenarios(t *testing.T) {
	path := writeSchema(t, testutil.WidgetSchema)
	srv := newHandlerServer(t, testutil.NewMemoryHandler(testutil.WidgetType(t)))

	out, _, err := executeCommand(t, "test", path,
		"--endpoint", srv.URL,
		"--scenarios", filepath.Join("..", "suite", "testdata", "scenarios"),
		"--filter", "create_read_twice,delete_then_missing",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ create_read_twice")
	assert.Contains(t, out, "✓ delete_then_missing")
	assert.Contains(t, out, "2 passed, 0 failed, 0 skipped")
}
