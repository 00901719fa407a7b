package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	props "github.com/goliatone/go-props"
)

var (
	enabledProp    = props.NewProperty[bool]("Enabled")
	quietStartProp = props.NewProperty[string]("QuietStart")
	quietEndProp   = props.NewProperty[string]("QuietEnd")
	dailyProp      = props.NewProperty[int]("Daily")
	monthlyProp    = props.NewProperty[int64]("Monthly")
	tagsProp       = props.NewProperty[[]string]("Tags")
	timeoutProp    = props.NewProperty[time.Duration]("Timeout")
	themeProp      = props.NewProperty[string]("Theme").WithAlias("colorScheme")

	settingsSchema = props.MustSchema(
		enabledProp, quietStartProp, quietEndProp, dailyProp, monthlyProp, tagsProp, timeoutProp, themeProp,
	)
)

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_settings.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder(settingsSchema, buildOptions(tc)...)
			ctx := Context{
				Source: tc.Source,
				Scope:  tc.Scope,
			}

			values, err := decoder.Decode(ctx, tc.Input)

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}

			got := make(map[string]string, len(values))
			for _, pv := range values {
				if pv.Source() != props.SourceDefined {
					t.Fatalf("expected defined values, got %s for %s", pv.Source(), pv.Property().Name())
				}
				got[pv.Property().Name()] = fmt.Sprint(pv.Value())
			}
			if !reflect.DeepEqual(tc.Expect, got) {
				t.Fatalf("decoded values mismatch:\nwant: %#v\n got: %#v", tc.Expect, got)
			}
		})
	}
}

func TestDecodeKeepsSchemaOrder(t *testing.T) {
	values, err := NewDecoder(settingsSchema).Decode(Context{}, map[string]any{
		"theme":   "light",
		"daily":   1,
		"enabled": true,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var names []string
	for _, pv := range values {
		names = append(names, pv.Property().Name())
	}
	if strings.Join(names, ",") != "Enabled,Daily,Theme" {
		t.Fatalf("expected schema order, got %v", names)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := NewDecoder(settingsSchema).Decode(Context{Source: "x"}, nil); err == nil {
		t.Fatalf("expected nil payload error")
	}
	if _, err := NewDecoder(nil).Decode(Context{}, map[string]any{}); err == nil {
		t.Fatalf("expected missing schema error")
	}
	_, err := NewDecoder(settingsSchema, WithDisallowUnknown()).Decode(Context{}, map[string]any{"nope": 1})
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	_, err = NewDecoder(settingsSchema).Decode(Context{}, map[string]any{"daily": "many"})
	if !errors.Is(err, props.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestDecodeJSONAndContainers(t *testing.T) {
	decoder := NewDecoder(settingsSchema, WithUseNumber())
	values, err := decoder.DecodeJSON(Context{Source: "inline"}, strings.NewReader(`{"daily": 7, "tags": ["x"]}`))
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(values))
	}
	if _, err := decoder.DecodeJSON(Context{Source: "broken"}, strings.NewReader(`{`)); err == nil {
		t.Fatalf("expected read error")
	}

	parent, err := decoder.DecodeContainer(Context{}, map[string]any{"daily": 5, "theme": "light"})
	if err != nil {
		t.Fatalf("decode container: %v", err)
	}
	child, err := decoder.DecodeMutable(Context{}, map[string]any{"theme": "dark"}, props.WithParent(parent))
	if err != nil {
		t.Fatalf("decode mutable: %v", err)
	}
	if theme, _ := props.GetValue(child, themeProp); theme != "dark" {
		t.Fatalf("expected dark, got %q", theme)
	}
	if daily, _ := props.GetValue(child, dailyProp); daily != 5 {
		t.Fatalf("expected daily from parent, got %d", daily)
	}

	empty, err := decoder.DecodeMutable(Context{}, nil)
	if err != nil || empty.Count() != 0 {
		t.Fatalf("nil payload must yield an empty container, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	decoder := NewDecoder(settingsSchema)
	c, err := decoder.DecodeMutable(Context{}, map[string]any{"daily": 4, "tags": []any{"a"}, "timeout": "2s"})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload := Encode(c)
	if payload["Daily"] != 4 || payload["Timeout"] != 2*time.Second {
		t.Fatalf("unexpected payload %#v", payload)
	}

	again, err := decoder.Decode(Context{}, payload)
	if err != nil {
		t.Fatalf("decode encoded payload: %v", err)
	}
	if len(again) != 3 {
		t.Fatalf("expected 3 values after round trip, got %d", len(again))
	}
}

func buildOptions(tc fixtureCase) []DecoderOption {
	options := []DecoderOption{}

	for _, optName := range tc.Options {
		switch optName {
		case "use_number":
			options = append(options, WithUseNumber())
		case "disallow_unknown":
			options = append(options, WithDisallowUnknown())
		}
	}

	for _, hookName := range tc.PreHooks {
		switch hookName {
		case "quiet_hours_split":
			options = append(options, WithPreHook(quietHoursPreHook))
		}
	}

	for _, hookName := range tc.PostHooks {
		switch hookName {
		case "ensure_tag":
			options = append(options, WithPostHook(ensureTagPostHook))
		}
	}

	return options
}

func quietHoursPreHook(_ Context, payload map[string]any) (map[string]any, error) {
	value, ok := payload["quietHours"].(string)
	if !ok || value == "" {
		return payload, nil
	}

	parts := strings.Split(value, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid quiet hours payload %q", value)
	}

	delete(payload, "quietHours")
	payload["quietStart"] = strings.TrimSpace(parts[0])
	payload["quietEnd"] = strings.TrimSpace(parts[1])
	return payload, nil
}

func ensureTagPostHook(ctx Context, values []props.PropertyValue) ([]props.PropertyValue, error) {
	for _, pv := range values {
		if pv.Property() == props.UntypedProperty(tagsProp) {
			return values, nil
		}
	}
	identifier := sourceIdentifier(ctx.Source)
	tag := fmt.Sprintf("%s:%s", ctx.Scope, identifier)
	return append(values, props.ValueOf(tagsProp, []string{tag})), nil
}

func sourceIdentifier(source string) string {
	if source == "" {
		return ""
	}
	parts := strings.Split(source, "/")
	if len(parts) < 2 {
		return source
	}
	return parts[1]
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name      string            `json:"name"`
	Source    string            `json:"source"`
	Scope     string            `json:"scope"`
	Input     map[string]any    `json:"input"`
	Expect    map[string]string `json:"expect"`
	ExpectErr string            `json:"expectErr"`
	PreHooks  []string          `json:"preHooks"`
	PostHooks []string          `json:"postHooks"`
	Options   []string          `json:"options"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	path := filepath.Join("..", "..", "testdata", name)
	raw, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	defer raw.Close()

	// numbers stay json.Number so precision cases see the literal digits
	dec := json.NewDecoder(raw)
	dec.UseNumber()
	var fx fixture
	if err := dec.Decode(&fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}
