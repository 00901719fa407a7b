package state_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/goliatone/go-props/pkg/state"
)

type identifierFixture struct {
	Description string           `json:"description"`
	Cases       []identifierCase `json:"cases"`
}

type identifierCase struct {
	Name   string        `json:"name"`
	Ref    identifierRef `json:"ref"`
	Expect expectValue   `json:"expect"`
}

type identifierRef struct {
	Domain string       `json:"domain"`
	Scope  fixtureScope `json:"scope"`
}

type fixtureScope struct {
	Name     string         `json:"name"`
	Label    string         `json:"label"`
	Priority int            `json:"priority"`
	Metadata map[string]any `json:"metadata"`
}

type expectValue struct {
	Value string `json:"value"`
	Err   string `json:"err"`
}

func TestRefIdentifierContracts(t *testing.T) {
	fx := loadFixture[identifierFixture](t, "state_identifier.json")
	for _, tc := range fx.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			ref := state.Ref{Domain: tc.Ref.Domain, Scope: toPropsScope(tc.Ref.Scope)}
			got, err := ref.Identifier()
			store := state.NewMemoryStore()
			_, saveErr := store.Save(context.Background(), ref, map[string]any{}, state.Meta{})

			if tc.Expect.Err != "" {
				if err == nil || err.Error() != tc.Expect.Err {
					t.Fatalf("expected error %q, got %v", tc.Expect.Err, err)
				}
				if saveErr == nil || saveErr.Error() != tc.Expect.Err {
					t.Fatalf("expected store to reject the ref with %q, got %v", tc.Expect.Err, saveErr)
				}
				return
			}

			if err != nil || saveErr != nil {
				t.Fatalf("unexpected error: %v / %v", err, saveErr)
			}
			if got != tc.Expect.Value {
				t.Fatalf("expected %q, got %q", tc.Expect.Value, got)
			}
			if keys := store.Keys(); len(keys) != 1 || keys[0] != got {
				t.Fatalf("expected the store to key the snapshot by %q, got %v", got, keys)
			}
		})
	}
}

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("failed to locate fixture directory")
	}
	fixturePath := filepath.Join(filepath.Dir(filename), "..", "..", "testdata", name)
	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", fixturePath, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", fixturePath, err)
	}
	return out
}
