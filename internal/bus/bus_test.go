package bus

import (
	"errors"
	"testing"
)

func TestEmitOrderAndIsolation(t *testing.T) {
	b := New()

	var order []string
	b.Subscribe("x.y", func(map[string]any) { order = append(order, "h1") })
	b.Subscribe("x.y", func(map[string]any) {
		order = append(order, "h2")
		panic("boom")
	})
	b.Subscribe("x.y", func(map[string]any) { order = append(order, "h3") })

	record := b.Emit("x.y", nil)

	want := []string{"h1", "h2", "h3"}
	if len(order) != len(want) {
		t.Fatalf("expected %d handler calls, got %d (%v)", len(want), len(order), order)
	}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("call %d: expected %s, got %s", i, name, order[i])
		}
	}

	if len(record.Errors) != 1 {
		t.Fatalf("expected exactly 1 recorded error, got %d", len(record.Errors))
	}
	if record.HandlerCount != 2 {
		t.Errorf("expected handler count 2, got %d", record.HandlerCount)
	}
}

func TestWildcardMatching(t *testing.T) {
	b := New()

	fired := 0
	b.Subscribe("x.*", func(map[string]any) { fired++ })

	b.Emit("x.y", nil)
	if fired != 1 {
		t.Errorf("expected wildcard handler to fire once for x.y, fired %d times", fired)
	}

	b.Emit("z.y", nil)
	if fired != 1 {
		t.Errorf("wildcard handler fired for non-matching event z.y")
	}
}

func TestExactBeforeWildcard(t *testing.T) {
	b := New()

	var order []string
	b.Subscribe("a.*", func(map[string]any) { order = append(order, "wild") })
	b.Subscribe("a.b", func(map[string]any) { order = append(order, "exact") })

	b.Emit("a.b", nil)

	if len(order) != 2 || order[0] != "exact" || order[1] != "wild" {
		t.Errorf("expected exact handler before wildcard handler, got %v", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()

	fired := 0
	h := Handler(func(map[string]any) { fired++ })

	b.Subscribe("a.b", h)
	if !b.Unsubscribe("a.b", h) {
		t.Fatal("expected Unsubscribe to find the handler")
	}
	b.Emit("a.b", nil)
	if fired != 0 {
		t.Errorf("handler fired after unsubscribe")
	}

	b.Subscribe("a.*", h)
	if !b.Unsubscribe("a.*", h) {
		t.Fatal("expected Unsubscribe to find the wildcard handler")
	}
	if b.Unsubscribe("a.*", h) {
		t.Error("second Unsubscribe should return false")
	}
}

func TestHistoryBounded(t *testing.T) {
	b := NewWithHistory(5)

	for i := 0; i < 12; i++ {
		b.Emit("tick", nil)
	}

	history := b.History()
	if len(history) != 5 {
		t.Errorf("expected history capped at 5, got %d", len(history))
	}
}

func TestHandlerFaultForwarded(t *testing.T) {
	b := New()

	var gotSource string
	var gotErr error
	var gotEvent any
	b.SetErrorLogger(func(source string, err error, context map[string]any) {
		gotSource = source
		gotErr = err
		gotEvent = context["event"]
	})

	b.Subscribe("f.g", func(map[string]any) { panic(errors.New("kaput")) })
	b.Emit("f.g", nil)

	if gotSource != "event_bus" {
		t.Errorf("expected fault source event_bus, got %q", gotSource)
	}
	if gotErr == nil {
		t.Fatal("expected fault error to be forwarded")
	}
	if gotEvent != "f.g" {
		t.Errorf("expected fault context event f.g, got %v", gotEvent)
	}
}

func TestAlertPayloadSchema(t *testing.T) {
	b := New()

	var payload map[string]any
	b.Subscribe(TopicErrorAlert, func(p map[string]any) { payload = p })

	b.Emit(TopicErrorAlert, map[string]any{
		"source":         "odoo.sync",
		"error_count":    3,
		"window_seconds": 3600,
		"ts":             "2026-01-01T00:00:00Z",
	})

	for _, field := range []string{"source", "error_count", "window_seconds", "ts"} {
		if _, ok := payload[field]; !ok {
			t.Errorf("alert payload missing documented field %q", field)
		}
	}
}
