package schemadef

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	props "github.com/goliatone/go-props"
)

const profileYAML = `
name: profile
engine: expr
properties:
  - name: FirstName
    type: string
    alias: first_name
    description: Given name
  - name: LastName
    type: str
  - name: FullName
    type: string
    calculate: FirstName + " " + LastName
  - name: Greeting
    type: string
    calculate:
      engine: cel
      expr: '"Hello " + FirstName'
  - name: Retries
    type: integer
    default: 3
  - name: Budget
    type: int
    calculate:
      expr: Retries * args.factor
      args:
        factor: 10
  - name: Ratio
    type: number
    default: 0.5
  - name: Enabled
    type: boolean
    default: true
  - name: Timeout
    type: duration
    default: 90s
  - name: Since
    type: time
    default: "2024-01-02T03:04:05Z"
  - name: Tags
    type: strings
    default: [a, b]
    metadata:
      ui: chips
  - name: Extra
    type: object
  - name: Anything
    type: any
`

func TestParseBuildsTypedSchema(t *testing.T) {
	schema, err := Parse([]byte(profileYAML))
	require.NoError(t, err)
	require.Equal(t, 13, schema.Len())

	descriptors := schema.Describe()
	assert.Equal(t, "FirstName", descriptors[0].Name)
	assert.Equal(t, "first_name", descriptors[0].Alias)
	assert.Equal(t, "Given name", descriptors[0].Description)

	first, err := props.PropertyOf[string](schema, "first_name")
	require.NoError(t, err)
	assert.Equal(t, "FirstName", first.Name())

	tags, err := props.PropertyOf[[]string](schema, "Tags")
	require.NoError(t, err)
	assert.Equal(t, "chips", tags.Metadata()["ui"])

	_, err = props.PropertyOf[map[string]any](schema, "Extra")
	require.NoError(t, err)
	_, err = props.PropertyOf[any](schema, "Anything")
	require.NoError(t, err)
}

func TestDefaultsAreConverted(t *testing.T) {
	schema, err := Parse([]byte(profileYAML))
	require.NoError(t, err)
	empty := props.MustContainer(nil)

	retries, err := props.GetValue(empty, mustProperty[int](t, schema, "Retries"))
	require.NoError(t, err)
	assert.Equal(t, 3, retries)

	ratio, err := props.GetValue(empty, mustProperty[float64](t, schema, "Ratio"))
	require.NoError(t, err)
	assert.Equal(t, 0.5, ratio)

	enabled, err := props.GetValue(empty, mustProperty[bool](t, schema, "Enabled"))
	require.NoError(t, err)
	assert.True(t, enabled)

	timeout, err := props.GetValue(empty, mustProperty[time.Duration](t, schema, "Timeout"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, timeout)

	since, err := props.GetValue(empty, mustProperty[time.Time](t, schema, "Since"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), since.UTC())

	tags, err := props.GetValue(empty, mustProperty[[]string](t, schema, "Tags"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)
}

func TestCalculatorsUseDocumentAndPropertyEngines(t *testing.T) {
	schema, err := Parse([]byte(profileYAML))
	require.NoError(t, err)

	firstName := mustProperty[string](t, schema, "FirstName")
	lastName := mustProperty[string](t, schema, "LastName")
	c := props.MustContainer([]props.PropertyValue{
		props.ValueOf(firstName, "Ada"),
		props.ValueOf(lastName, "Lovelace"),
	})

	full, err := props.GetPropertyValue(c, mustProperty[string](t, schema, "FullName"))
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", full.Value)
	assert.Equal(t, props.SourceCalculated, full.Source)

	greeting, err := props.GetValue(c, mustProperty[string](t, schema, "Greeting"))
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", greeting)
}

func TestCalculatorArgsAndDefaultsCombine(t *testing.T) {
	schema, err := Parse([]byte(profileYAML))
	require.NoError(t, err)
	retries := mustProperty[int](t, schema, "Retries")

	c := props.MustContainer([]props.PropertyValue{props.ValueOf(retries, 4)})
	budget, err := props.GetValue(c, mustProperty[int](t, schema, "Budget"))
	require.NoError(t, err)
	assert.Equal(t, 40, budget)
}

func TestDecodeRejectsInvalidDocuments(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr error
		contain string
	}{
		{name: "empty", yaml: "", wantErr: ErrInvalidDocument},
		{name: "no properties", yaml: "name: x\nproperties: []\n", wantErr: ErrInvalidDocument},
		{name: "unknown type", yaml: "properties:\n  - name: A\n    type: decimal\n", wantErr: ErrUnknownType},
		{name: "missing name", yaml: "properties:\n  - type: int\n", wantErr: ErrInvalidDocument},
		{name: "empty calculator", yaml: "properties:\n  - name: A\n    calculate: ''\n", wantErr: ErrInvalidDocument},
		{name: "unknown field", yaml: "properties:\n  - name: A\n    kind: int\n", contain: "field kind not found"},
		{name: "broken yaml", yaml: "properties: [", contain: "schemadef: parse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.yaml))
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			if tc.contain != "" {
				assert.Contains(t, err.Error(), tc.contain)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	_, err := Parse([]byte("properties:\n  - name: A\n    type: int\n    default: many\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, props.ErrTypeMismatch)
	assert.Contains(t, err.Error(), `property "A"`)

	_, err = Parse([]byte("properties:\n  - name: A\n  - name: a\n"))
	assert.ErrorIs(t, err, props.ErrDuplicateProperty)

	_, err = Parse([]byte("properties:\n  - name: A\n    calculate:\n      engine: lua\n      expr: x\n"))
	assert.ErrorIs(t, err, props.ErrUnknownEngine)

	_, err = Parse([]byte("properties:\n  - name: A\n    calculate: 'A +'\n"))
	require.Error(t, err)

	_, err = NewLoader().Build(nil)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestLoadersShareProgramCache(t *testing.T) {
	programs := props.NewProgramCache(16)
	doc := []byte("properties:\n  - name: A\n  - name: B\n    calculate: A + \"!\"\n")

	_, err := Parse(doc, WithProgramCache(programs))
	require.NoError(t, err)
	_, err = Parse(doc, WithProgramCache(programs))
	require.NoError(t, err)

	assert.Equal(t, 1, programs.Stats().ColdSize)
}

func TestWithEvaluatorReplacesEngine(t *testing.T) {
	var compiled []string
	evaluator := &recordingEvaluator{engine: props.EngineExpr, compiled: &compiled}

	schema, err := Parse([]byte("properties:\n  - name: A\n    calculate: anything\n"), WithEvaluator(evaluator))
	require.NoError(t, err)
	assert.Equal(t, []string{"anything"}, compiled)

	value, err := props.GetValue(props.MustContainer(nil), mustProperty[string](t, schema, "A"))
	require.NoError(t, err)
	assert.Equal(t, "recorded", value)
}

func TestWithFunctionRegistryAndLogger(t *testing.T) {
	registry := props.NewFunctionRegistry().MustRegister("shout", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("shout takes one argument")
		}
		return strings.ToUpper(args[0].(string)) + "!", nil
	})
	var events []props.EvaluationEvent
	logger := props.LoggerFuncs{Evaluation: func(e props.EvaluationEvent) { events = append(events, e) }}

	schema, err := Parse([]byte("properties:\n  - name: A\n  - name: B\n    calculate: shout(A)\n"),
		WithFunctionRegistry(registry), WithLogger(logger))
	require.NoError(t, err)

	a := mustProperty[string](t, schema, "A")
	value, err := props.GetValue(props.MustContainer([]props.PropertyValue{props.ValueOf(a, "hey")}), mustProperty[string](t, schema, "B"))
	require.NoError(t, err)
	assert.Equal(t, "HEY!", value)
	require.Len(t, events, 1)
	assert.Equal(t, "B", events[0].Property)
}

func TestLoadReadsFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profileYAML), 0o600))

	schema, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 13, schema.Len())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	big := filepath.Join(dir, "big.yaml")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxFileSize+1), 0o600))
	_, err = Load(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("properties: []\n"), 0o600))
	_, err = Load(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken)
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, []string{"[]string", "any", "bool", "duration", "float64", "int", "int64", "map", "string", "time"}, TypeNames())
}

func mustProperty[T any](t *testing.T, schema *props.Schema, name string) *props.Property[T] {
	t.Helper()
	p, err := props.PropertyOf[T](schema, name)
	require.NoError(t, err)
	return p
}

type recordingEvaluator struct {
	engine   string
	compiled *[]string
}

func (e *recordingEvaluator) Engine() string { return e.engine }

func (e *recordingEvaluator) Evaluate(props.EvalContext, string) (any, error) {
	return "recorded", nil
}

func (e *recordingEvaluator) Compile(expr string) (props.CompiledRule, error) {
	*e.compiled = append(*e.compiled, expr)
	return recordedRule{}, nil
}

type recordedRule struct{}

func (recordedRule) Evaluate(props.EvalContext) (any, error) {
	return "recorded", nil
}
