package activity

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNormalizeEventTrimsAndCopies(t *testing.T) {
	meta := map[string]any{"property": "Theme"}
	recipients := []string{"a", "b"}
	evt := Event{
		Verb:       " " + VerbPropertySet + " ",
		ActorID:    " actor ",
		TenantID:   " tenant ",
		ObjectID:   " container-1 ",
		Channel:    " properties ",
		Recipients: recipients,
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != VerbPropertySet || got.ObjectID != "container-1" || got.ActorID != "actor" || got.TenantID != "tenant" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.ObjectType != ObjectTypeContainer {
		t.Fatalf("expected object type to default to %q, got %q", ObjectTypeContainer, got.ObjectType)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	if got.Property() != "Theme" {
		t.Fatalf("expected property accessor to read metadata, got %q", got.Property())
	}

	got.Metadata["property"] = "changed"
	got.Recipients[0] = "changed"
	if meta["property"] != "Theme" || recipients[0] != "a" {
		t.Fatalf("expected inputs untouched: %v %v", meta, recipients)
	}

	if NormalizeEvent(Event{Verb: VerbPropertySet}).ObjectType != "" {
		t.Fatalf("object type must stay empty without an object id")
	}
}

func TestHooksDropUnroutableEvents(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	for _, evt := range []Event{
		{},
		{Verb: VerbPropertySet},
		{ObjectID: "container-1"},
	} {
		if err := hooks.Notify(context.Background(), evt); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, BuildPropertySetEvent(PropertyEventInput{ContainerID: "c1", Property: "Theme"}))
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !strings.Contains(err.Error(), "hook 2 ("+VerbPropertySet+")") || !strings.Contains(err.Error(), "hook 4") {
		t.Fatalf("expected hook positions in error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events))
	}
}

func TestOnlyVerbs(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{OnlyVerbs(capture, VerbPropertyRemoved)}

	input := PropertyEventInput{ContainerID: "c1", Property: "Theme"}
	_ = hooks.Notify(context.Background(), BuildPropertySetEvent(input))
	_ = hooks.Notify(context.Background(), BuildPropertyRemovedEvent(input))
	_ = hooks.Notify(context.Background(), BuildParentChangedEvent(input))

	if got := capture.Verbs(); !reflect.DeepEqual(got, []string{VerbPropertyRemoved}) {
		t.Fatalf("expected only removals, got %v", got)
	}

	if err := OnlyVerbs(nil, VerbPropertySet).Notify(context.Background(), Event{Verb: VerbPropertySet}); err != nil {
		t.Fatalf("nil hook must be a no-op, got %v", err)
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	evt := Event{Verb: VerbPropertySet, ObjectID: "c1"}

	var nilEmitter *Emitter
	if nilEmitter.Enabled() || nilEmitter.Emit(context.Background(), evt) != nil {
		t.Fatalf("nil emitter must be disabled")
	}
	if NewEmitter(Hooks{nil}, Config{Enabled: true}).Enabled() {
		t.Fatalf("expected emitter without hooks to be disabled")
	}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if err := disabled.Emit(context.Background(), evt); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true, ActorID: " svc ", TenantID: "t1"})
	if err := enabled.Emit(context.Background(), evt); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(capture.Events))
	}
	got := capture.Events[0]
	if got.Channel != DefaultChannel || got.ActorID != "svc" || got.TenantID != "t1" {
		t.Fatalf("expected defaults applied, got %+v", got)
	}

	capture.Reset()
	if len(capture.Verbs()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}

func TestEmitterPreservesExplicitFields(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default", ActorID: "svc"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       VerbPropertySet,
		ActorID:    "user-1",
		ObjectID:   "c1",
		Channel:    "custom",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	got := capture.Events[0]
	if got.Channel != "custom" || got.ActorID != "user-1" {
		t.Fatalf("expected explicit fields preserved, got %+v", got)
	}
	if !got.OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", got.OccurredAt)
	}
}
