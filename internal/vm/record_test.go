package vm

import (
	"bytes"
	"strings"
	"testing"

	"lacevm/internal/bytecode"
)

func TestRecorderAndReplayerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	rec.TraceStep(0, 0, bytecode.LDC)
	rec.TraceStep(0, 1, bytecode.DONE)
	rec.RecordHalt(nil)
	if err := rec.Err(); err != nil {
		t.Fatalf("Recorder.Err() = %v", err)
	}

	replay, err := NewReplayer(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("NewReplayer: %v", err)
	}
	if replay.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", replay.Len())
	}
	first, ok := replay.Next()
	if !ok || first.Kind != "step" || first.Op != "LDC" {
		t.Fatalf("first event = %+v, want step/LDC", first)
	}
}

func TestReplayerEqualDetectsDivergence(t *testing.T) {
	var a, b bytes.Buffer
	recA := NewRecorder(&a)
	recA.TraceStep(0, 0, bytecode.LDC)
	recA.RecordHalt(nil)

	recB := NewRecorder(&b)
	recB.TraceStep(0, 0, bytecode.GOTO)
	recB.RecordHalt(nil)

	ra, err := NewReplayer(strings.NewReader(a.String()))
	if err != nil {
		t.Fatalf("NewReplayer a: %v", err)
	}
	rb, err := NewReplayer(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("NewReplayer b: %v", err)
	}
	if ra.Equal(rb) {
		t.Fatal("expected divergent traces to compare unequal")
	}
}

func TestRecordHaltOnPanic(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	rec.RecordHalt(&VMError{Code: PanicDeadlock, Message: "every task blocked", TaskID: -1, PC: -1})

	replay, err := NewReplayer(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("NewReplayer: %v", err)
	}
	ev, ok := replay.Next()
	if !ok || ev.Kind != "panic" || ev.Code != "LVM2010" {
		t.Fatalf("halt event = %+v, want panic/LVM2010", ev)
	}
}
