package state_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	props "github.com/goliatone/go-props"
	"github.com/goliatone/go-props/pkg/state"
)

type mutateStore struct {
	loadSnapshot map[string]any
	loadMeta     state.Meta
	loadOK       bool
	loadErr      error

	saveCalls  int
	savedRef   state.Ref
	savedMeta  state.Meta
	savedValue map[string]any
	saveReturn state.Meta
	saveErr    error
}

func (s *mutateStore) Load(_ context.Context, ref state.Ref) (map[string]any, state.Meta, bool, error) {
	if s.loadErr != nil {
		return nil, state.Meta{}, false, s.loadErr
	}
	return s.loadSnapshot, s.loadMeta, s.loadOK, nil
}

func (s *mutateStore) Save(_ context.Context, ref state.Ref, snapshot map[string]any, meta state.Meta) (state.Meta, error) {
	s.saveCalls++
	s.savedRef = ref
	s.savedMeta = meta
	s.savedValue = snapshot
	if s.saveErr != nil {
		return state.Meta{}, s.saveErr
	}
	return s.saveReturn, nil
}

func userRef() state.Ref {
	return state.Ref{
		Domain: "notifications",
		Scope:  props.NewScope("user", props.ScopePriorityUser, props.WithScopeMetadata(map[string]any{"user_id": "u42"})),
	}
}

func requireDigest(c props.Container) error {
	digest, err := props.RequireValue(c, digestProp)
	if err != nil || digest == "" {
		return errors.New("digest is required")
	}
	return nil
}

func TestResolverMutateValidationFailureDoesNotSave(t *testing.T) {
	store := &mutateStore{
		loadSnapshot: map[string]any{"Digest": "daily"},
		loadMeta:     state.Meta{SnapshotID: "snap-1", ETag: "v1"},
		loadOK:       true,
		saveReturn:   state.Meta{SnapshotID: "snap-2", ETag: "v2"},
	}

	resolver := state.Resolver{Store: store, Schema: notificationsSchema, Validate: requireDigest}
	_, _, err := resolver.Mutate(context.Background(), userRef(), state.Meta{ETag: "v1"}, func(c *props.MutableContainer) error {
		_, err := c.Remove(digestProp)
		return err
	})
	if err == nil || err.Error() != "digest is required" {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.saveCalls != 0 {
		t.Fatalf("expected no save calls, got %d", store.saveCalls)
	}
}

func TestResolverMutateRejectsPropertiesOutsideSchema(t *testing.T) {
	store := &mutateStore{loadOK: false}
	resolver := state.Resolver{Store: store, Schema: notificationsSchema}

	stray := props.NewProperty[string]("Stray")
	_, _, err := resolver.Mutate(context.Background(), userRef(), state.Meta{}, func(c *props.MutableContainer) error {
		return props.SetValue(c, stray, "x")
	})
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
	if store.saveCalls != 0 {
		t.Fatalf("expected no save calls, got %d", store.saveCalls)
	}
}

func TestResolverMutatePropagatesMetaAndSnapshotID(t *testing.T) {
	store := &mutateStore{
		loadSnapshot: map[string]any{"email_enabled": false, "Digest": "daily"},
		loadMeta:     state.Meta{SnapshotID: "snap-old", ETag: "v1"},
		loadOK:       true,
		saveReturn:   state.Meta{SnapshotID: "snap-new", ETag: "v2"},
	}

	resolver := state.Resolver{Store: store, Schema: notificationsSchema, Validate: requireDigest}
	container, gotMeta, err := resolver.Mutate(context.Background(), userRef(), state.Meta{ETag: "v1"}, func(c *props.MutableContainer) error {
		return props.SetValue(c, emailEnabledProp, true)
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if gotMeta.SnapshotID != "snap-new" || gotMeta.ETag != "v2" {
		t.Fatalf("expected saved meta snap-new/v2, got %q/%q", gotMeta.SnapshotID, gotMeta.ETag)
	}

	if store.saveCalls != 1 {
		t.Fatalf("expected 1 save call, got %d", store.saveCalls)
	}
	if store.savedMeta.SnapshotID != "snap-old" || store.savedMeta.ETag != "v1" {
		t.Fatalf("expected save meta snap-old/v1, got %q/%q", store.savedMeta.SnapshotID, store.savedMeta.ETag)
	}
	if store.savedValue["EmailEnabled"] != true || store.savedValue["Digest"] != "daily" {
		t.Fatalf("unexpected saved snapshot %#v", store.savedValue)
	}

	// Provenance should reflect the saved SnapshotID.
	pv, trace, err := props.ResolveWithTrace(container, emailEnabledProp)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if pv.Value() != true {
		t.Fatalf("expected mutated value, got %v", pv.Value())
	}
	if len(trace.Layers) != 1 {
		t.Fatalf("expected 1 trace layer, got %d", len(trace.Layers))
	}
	if trace.Layers[0].SnapshotID != "snap-new" || trace.Layers[0].Scope.Name != "user" {
		t.Fatalf("expected trace snapshot=snap-new scope=user, got snapshot=%q scope=%q", trace.Layers[0].SnapshotID, trace.Layers[0].Scope.Name)
	}
}

func TestResolverMutateETagMismatch(t *testing.T) {
	store := &mutateStore{
		loadSnapshot: map[string]any{"Digest": "daily"},
		loadMeta:     state.Meta{SnapshotID: "snap-1", ETag: "v1"},
		loadOK:       true,
		saveReturn:   state.Meta{SnapshotID: "snap-2", ETag: "v2"},
	}

	resolver := state.Resolver{Store: store, Schema: notificationsSchema}
	_, _, err := resolver.Mutate(context.Background(), userRef(), state.Meta{ETag: "v2"}, func(c *props.MutableContainer) error {
		return props.SetValue(c, digestProp, "weekly")
	})
	if err == nil || !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
	if store.saveCalls != 0 {
		t.Fatalf("expected no save calls, got %d", store.saveCalls)
	}
}

func TestResolverMutateErrors(t *testing.T) {
	loadErr := errors.New("disk gone")
	resolver := state.Resolver{Store: &mutateStore{loadErr: loadErr}, Schema: notificationsSchema}
	_, _, err := resolver.Mutate(context.Background(), userRef(), state.Meta{}, func(*props.MutableContainer) error { return nil })
	if !errors.Is(err, loadErr) {
		t.Fatalf("expected load error, got %v", err)
	}

	saveErr := errors.New("read only")
	resolver = state.Resolver{Store: &mutateStore{saveErr: saveErr}, Schema: notificationsSchema}
	_, _, err = resolver.Mutate(context.Background(), userRef(), state.Meta{}, func(c *props.MutableContainer) error {
		return props.SetValue(c, frequencyProp, 2)
	})
	if !errors.Is(err, saveErr) {
		t.Fatalf("expected save error, got %v", err)
	}

	if _, _, err := resolver.Mutate(context.Background(), userRef(), state.Meta{}, nil); err == nil {
		t.Fatalf("expected missing mutator error")
	}
	if _, _, err := resolver.Mutate(context.Background(), state.Ref{Domain: "notifications"}, state.Meta{}, func(*props.MutableContainer) error { return nil }); err == nil {
		t.Fatalf("expected missing scope error")
	}
}

func TestResolverMutateThenResolve(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	resolver := state.Resolver{Store: store, Schema: notificationsSchema}
	system := props.NewScope("system", props.ScopePrioritySystem)

	if _, _, err := resolver.Mutate(ctx, state.Ref{Domain: "notifications", Scope: system}, state.Meta{SnapshotID: "sys-1"}, func(c *props.MutableContainer) error {
		if err := props.SetValue(c, digestProp, "daily"); err != nil {
			return err
		}
		return props.SetValue(c, frequencyProp, 1)
	}); err != nil {
		t.Fatalf("mutate system: %v", err)
	}
	if _, _, err := resolver.Mutate(ctx, userRef(), state.Meta{SnapshotID: "usr-1"}, func(c *props.MutableContainer) error {
		return props.SetValue(c, frequencyProp, 5)
	}); err != nil {
		t.Fatalf("mutate user: %v", err)
	}

	container, err := resolver.Resolve(ctx, "notifications", system, userRef().Scope)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got, _ := props.GetValue(container, frequencyProp); got != 5 {
		t.Fatalf("expected user frequency 5, got %d", got)
	}
	if got, _ := props.GetValue(container, digestProp); got != "daily" {
		t.Fatalf("expected system digest, got %q", got)
	}
}
