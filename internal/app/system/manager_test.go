package system

import (
	"context"
	"fmt"
	"testing"
)

type recordedService struct {
	name  string
	log   *[]string
	fail  bool
	stops int
}

func (s *recordedService) Name() string { return s.name }

func (s *recordedService) Start(ctx context.Context) error {
	if s.fail {
		return fmt.Errorf("boom")
	}
	*s.log = append(*s.log, "start:"+s.name)
	return nil
}

func (s *recordedService) Stop(ctx context.Context) error {
	s.stops++
	*s.log = append(*s.log, "stop:"+s.name)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var log []string
	m := NewManager()
	a := &recordedService{name: "a", log: &log}
	b := &recordedService{name: "b", log: &log}

	if err := m.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := m.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if err := m.Register(&recordedService{name: "a", log: &log}); err == nil {
		t.Fatalf("expected duplicate name error")
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("unexpected log %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, log[i], want[i])
		}
	}
}

func TestManagerStartFailureUnwinds(t *testing.T) {
	var log []string
	m := NewManager()
	ok := &recordedService{name: "ok", log: &log}
	bad := &recordedService{name: "bad", log: &log, fail: true}

	if err := m.Register(ok); err != nil {
		t.Fatalf("register ok: %v", err)
	}
	if err := m.Register(bad); err != nil {
		t.Fatalf("register bad: %v", err)
	}

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if ok.stops != 1 {
		t.Fatalf("expected started service to be unwound, stops=%d", ok.stops)
	}
}
