package processor

import (
	"context"
	"errors"
	"testing"
)

func TestEngineHandleLazyCreation(t *testing.T) {
	counter := &engineCounter{engine: &fakeEngine{}}
	h := NewEngineHandle(counter.factory)

	if h.Created() || counter.created != 0 {
		t.Fatalf("engine must not be created before first use")
	}
	for i := 0; i < 3; i++ {
		if _, err := h.Get(context.Background()); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if counter.created != 1 || !h.Created() {
		t.Errorf("expected one creation, got %d", counter.created)
	}
}

func TestEngineHandleCachesFactoryError(t *testing.T) {
	counter := &engineCounter{err: errors.New("no tessdata")}
	h := NewEngineHandle(counter.factory)

	for i := 0; i < 2; i++ {
		if _, err := h.Get(context.Background()); err == nil || err.Error() != "no tessdata" {
			t.Errorf("Get() error = %v", err)
		}
	}
	if counter.created != 1 {
		t.Errorf("factory called %d times", counter.created)
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close() on failed handle = %v", err)
	}
}

func TestEngineHandleCloseIsIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	h := NewEngineHandle((&engineCounter{engine: engine}).factory)

	if err := h.Close(); err != nil {
		t.Fatalf("Close() before use = %v", err)
	}
	if engine.closed != 0 {
		t.Errorf("closing an unused handle must not touch an engine")
	}
	if _, err := h.Get(context.Background()); !errors.Is(err, ErrHandleClosed) {
		t.Errorf("Get() after Close = %v, want ErrHandleClosed", err)
	}

	h2 := NewEngineHandle((&engineCounter{engine: engine}).factory)
	if _, err := h2.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	h2.Close()
	h2.Close()
	if engine.closed != 1 {
		t.Errorf("engine closed %d times, want 1", engine.closed)
	}
}

func TestProgressReporterClampsAndOrders(t *testing.T) {
	var got []ProcessingStatus
	r := newProgressReporter("job", collectStatuses(&got))

	r.report(StageParsing, 10, "a")
	r.report(StageExtracting, 5, "b")
	r.report(StageOCR, 150, "c")
	r.fail("boom")

	want := []float64{10, 10, 100, 100}
	for i, s := range got {
		if s.Progress != want[i] {
			t.Errorf("status %d progress = %v, want %v", i, s.Progress, want[i])
		}
	}
	if got[3].Stage != StageError || got[3].Message != "boom" {
		t.Errorf("unexpected failure status %+v", got[3])
	}
}
