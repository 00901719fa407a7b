package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	props "github.com/goliatone/go-props"
)

const testSchema = `
name: profile
properties:
  - name: Name
    type: string
    description: Given name
  - name: Surname
    type: string
  - name: FullName
    type: string
    calculate: Name + " " + Surname
  - name: Age
    type: int
    default: 18
  - name: Theme
    type: string
    alias: color_scheme
`

type workspace struct {
	dir    string
	schema string
	user   string
	system string
	config string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:    dir,
		schema: filepath.Join(dir, "schema.yaml"),
		user:   filepath.Join(dir, "user.yaml"),
		system: filepath.Join(dir, "system.json"),
		config: filepath.Join(dir, "propctl.yaml"),
	}
	writeFile(t, ws.schema, testSchema)
	writeFile(t, ws.user, "name: Alex\n")
	writeFile(t, ws.system, `{"Name": "Default", "Surname": "Smith", "color_scheme": "light"}`)
	writeFile(t, ws.config, "cache:\n  plans: 64\n  programs: 16\n")
	return ws
}

func (ws workspace) sources() []string {
	return []string{"--config", ws.config, "--schema", ws.schema, "--layer", "user=" + ws.user, "--layer", "system=" + ws.system}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDescribe(t *testing.T) {
	ws := newWorkspace(t)

	out, _, err := run(t, "describe", "--config", ws.config, ws.schema)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Given name")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[3], "calculated")
	assert.Contains(t, lines[4], "default")
	assert.Contains(t, lines[5], "color_scheme")

	out, _, err = run(t, "describe", "--config", ws.config, "--json", ws.schema)
	require.NoError(t, err)
	var descriptors []props.FieldDescriptor
	require.NoError(t, json.Unmarshal([]byte(out), &descriptors))
	require.Len(t, descriptors, 5)
	assert.Equal(t, "int", descriptors[3].Type)
	assert.True(t, descriptors[2].Calculated)
}

func TestDescribeOpenAPI(t *testing.T) {
	ws := newWorkspace(t)

	out, _, err := run(t, "describe", "--config", ws.config, "--openapi", "--json", "--title", "Profile", ws.schema)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Profile", doc["info"].(map[string]any)["title"])
	fields := doc["components"].(map[string]any)["schemas"].(map[string]any)["Properties"].(map[string]any)["properties"].(map[string]any)
	require.Len(t, fields, 5)
	assert.Equal(t, float64(18), fields["Age"].(map[string]any)["default"])
	assert.Equal(t, true, fields["FullName"].(map[string]any)["readOnly"])
	assert.Equal(t, "color_scheme", fields["Theme"].(map[string]any)["x-alias"])

	out, _, err = run(t, "describe", "--config", ws.config, "--openapi", ws.schema)
	require.NoError(t, err)
	assert.Contains(t, out, "openapi: 3.0.3")
	assert.Contains(t, out, "#/components/schemas/Properties")
}

func TestResolveWalksLayers(t *testing.T) {
	ws := newWorkspace(t)

	args := append([]string{"resolve"}, ws.sources()...)
	out, _, err := run(t, append(args, "Name", "FullName", "Age", "theme")...)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		`Name = "Alex" (defined)`,
		`FullName = "Alex Smith" (calculated)`,
		`Age = 18 (default_value)`,
		`Theme = "light" (defined)`,
	}, "\n")+"\n", out)
}

func TestResolveSearchFlags(t *testing.T) {
	ws := newWorkspace(t)
	args := append([]string{"resolve"}, ws.sources()...)

	out, _, err := run(t, append(args, "--no-parent", "Surname")...)
	require.NoError(t, err)
	assert.Equal(t, "Surname: not found\n", out)

	out, _, err = run(t, append(args, "--no-default", "Age")...)
	require.NoError(t, err)
	assert.Equal(t, "Age: not found\n", out)

	out, _, err = run(t, append(args, "--no-calc", "FullName")...)
	require.NoError(t, err)
	assert.Equal(t, "FullName: not found\n", out)
}

func TestResolveTraceJSON(t *testing.T) {
	ws := newWorkspace(t)
	args := append([]string{"resolve", "--json", "--trace"}, ws.sources()...)

	out, _, err := run(t, append(args, "Theme")...)
	require.NoError(t, err)

	var results []resolvedValue
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	result := results[0]
	assert.True(t, result.Found)
	assert.Equal(t, "light", result.Value)
	assert.Equal(t, "defined", result.Source)
	require.NotNil(t, result.Trace)
	require.Len(t, result.Trace.Layers, 2)
	assert.Equal(t, "user", result.Trace.Layers[0].Scope.Name)
	assert.False(t, result.Trace.Layers[0].Found)
	assert.Equal(t, ws.user, result.Trace.Layers[0].SnapshotID)
	assert.Equal(t, "system", result.Trace.Layers[1].Scope.Name)
	assert.True(t, result.Trace.Layers[1].Found)
	assert.Equal(t, 200, result.Trace.Layers[0].Scope.Priority)
	assert.Equal(t, 100, result.Trace.Layers[1].Scope.Priority)
}

func TestResolveTraceText(t *testing.T) {
	ws := newWorkspace(t)
	args := append([]string{"resolve", "--trace"}, ws.sources()...)

	out, _, err := run(t, append(args, "Name")...)
	require.NoError(t, err)
	assert.Contains(t, out, `Name = "Alex" (defined)`)
	assert.Contains(t, out, `* 0 user `+ws.user+` = "Alex"`)
	assert.Contains(t, out, `* 1 system `+ws.system+` = "Default"`)
}

func TestResolveExplicitPriorities(t *testing.T) {
	ws := newWorkspace(t)
	out, _, err := run(t, "resolve", "--config", ws.config, "--schema", ws.schema,
		"--layer", "user:1="+ws.user, "--layer", "system:9="+ws.system, "Name")
	require.NoError(t, err)
	assert.Equal(t, "Name = \"Default\" (defined)\n", out)
}

func TestFlattenJSON(t *testing.T) {
	ws := newWorkspace(t)
	args := append([]string{"flatten", "--json"}, ws.sources()...)

	out, _, err := run(t, args...)
	require.NoError(t, err)

	var flat map[string]struct {
		Value  any    `json:"value"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &flat))
	require.Len(t, flat, 5)
	assert.Equal(t, "Alex Smith", flat["FullName"].Value)
	assert.Equal(t, "calculated", flat["FullName"].Source)
	assert.Equal(t, float64(18), flat["Age"].Value)
	assert.Equal(t, "default_value", flat["Age"].Source)
}

func TestFlattenText(t *testing.T) {
	ws := newWorkspace(t)
	out, _, err := run(t, append([]string{"flatten", "--no-parent"}, ws.sources()...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `Name = "Alex" (defined)`)
	assert.Contains(t, out, `Age = 18 (default_value)`)
	assert.NotContains(t, out, "Surname")
}

func TestStatsReportsCacheCounters(t *testing.T) {
	ws := newWorkspace(t)
	out, _, err := run(t, append([]string{"stats", "--json", "--rounds", "2"}, ws.sources()...)...)
	require.NoError(t, err)

	var samples []struct {
		Metric string  `json:"metric"`
		Cache  string  `json:"cache"`
		Value  float64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &samples))
	values := map[string]float64{}
	for _, s := range samples {
		values[s.Cache+"/"+s.Metric] = s.Value
	}
	assert.Equal(t, float64(5), values["plans/props_cache_misses_total"])
	assert.Equal(t, float64(5), values["plans/props_cache_hits_total"])
	assert.Equal(t, float64(1), values["programs/props_cache_cold_entries"])

	out, _, err = run(t, append([]string{"stats"}, ws.sources()...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `props_cache_misses_total{cache="plans"} 5`)

	_, _, err = run(t, append([]string{"stats", "--rounds", "0"}, ws.sources()...)...)
	assert.ErrorContains(t, err, "rounds must be positive")
}

func TestCommandErrors(t *testing.T) {
	ws := newWorkspace(t)

	_, _, err := run(t, "resolve", "--config", ws.config)
	assert.ErrorContains(t, err, `required flag(s) "schema" not set`)

	_, _, err = run(t, "resolve", "--config", ws.config, "--schema", ws.schema, "--layer", "broken")
	assert.ErrorContains(t, err, "expected name[:priority]=file")

	_, _, err = run(t, "resolve", "--config", ws.config, "--schema", ws.schema, "--layer", "user:high="+ws.user)
	assert.ErrorContains(t, err, "invalid priority")

	_, _, err = run(t, append(append([]string{"resolve"}, ws.sources()...), "Nickname")...)
	assert.ErrorContains(t, err, `unknown property "Nickname"`)

	extra := filepath.Join(ws.dir, "extra.yaml")
	writeFile(t, extra, "nickname: Al\n")
	_, _, err = run(t, "resolve", "--config", ws.config, "--schema", ws.schema, "--strict", "--layer", "user="+extra)
	assert.ErrorContains(t, err, "unknown key")

	_, _, err = run(t, "resolve", "--config", ws.config, "--schema", ws.schema,
		"--layer", "user:1="+ws.user, "--layer", "system:1="+ws.system)
	assert.ErrorIs(t, err, props.ErrPriorityOrder)
}

func TestConfigSources(t *testing.T) {
	ws := newWorkspace(t)

	bad := filepath.Join(ws.dir, "bad.yaml")
	writeFile(t, bad, "cache:\n  plans: 0\n")
	_, _, err := run(t, "describe", "--config", bad, ws.schema)
	assert.ErrorContains(t, err, "cache.plans must be positive")

	_, _, err = run(t, "describe", "--config", filepath.Join(ws.dir, "missing.yaml"), ws.schema)
	assert.ErrorContains(t, err, "read config")

	t.Setenv("PROPCTL_CACHE_PLANS", "7")
	_, stderr, err := run(t, "describe", "-v", "--config", ws.config, ws.schema)
	require.NoError(t, err)
	assert.Contains(t, stderr, "plans=7")
	assert.Contains(t, stderr, "programs=16")

	_, stderr, err = run(t, "describe", "-v", "--plan-capacity", "3", "--config", ws.config, ws.schema)
	require.NoError(t, err)
	assert.Contains(t, stderr, "plans=3")
}

func TestVerboseLogsResolution(t *testing.T) {
	ws := newWorkspace(t)
	_, stderr, err := run(t, append(append([]string{"resolve", "-v"}, ws.sources()...), "Name")...)
	require.NoError(t, err)
	assert.Contains(t, stderr, "layer loaded")
	assert.Contains(t, stderr, "property resolved")
}
