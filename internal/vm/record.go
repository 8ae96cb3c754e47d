package vm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"lacevm/internal/bytecode"
)

// Recorder writes a deterministic NDJSON trace of a run: one instruction
// event per step plus builtin calls and the final outcome. It exists only
// to let a failing golden test be replayed instruction-by-instruction
// under --debug; it never influences VM semantics and implements Tracer
// so it can be dropped in as VM.Trace with no other wiring.
type Recorder struct {
	enc  *json.Encoder
	err  error
	done bool
}

// recordEvent is the single wire shape every NDJSON line decodes to; Kind
// discriminates which other fields are meaningful, mirroring a tagged
// union over JSON rather than one struct type per event.
type recordEvent struct {
	Kind    string `json:"kind"`
	Task    int    `json:"task,omitempty"`
	PC      int    `json:"pc,omitempty"`
	Op      string `json:"op,omitempty"`
	Child   int    `json:"child,omitempty"`
	Builtin string `json:"builtin,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewRecorder wraps w as an NDJSON sink.
func NewRecorder(w io.Writer) *Recorder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Recorder{enc: enc}
}

func (r *Recorder) write(ev recordEvent) {
	if r == nil || r.done || r.err != nil {
		return
	}
	if err := r.enc.Encode(ev); err != nil {
		r.err = err
	}
}

// Err reports the first encoding failure, if any.
func (r *Recorder) Err() error {
	if r == nil {
		return nil
	}
	return r.err
}

// TraceStep implements Tracer.
func (r *Recorder) TraceStep(taskID, pc int, op bytecode.Opcode) {
	r.write(recordEvent{Kind: "step", Task: taskID, PC: pc, Op: op.String()})
}

// TraceSpawn implements Tracer.
func (r *Recorder) TraceSpawn(parentID, childID, pc int) {
	r.write(recordEvent{Kind: "spawn", Task: parentID, Child: childID, PC: pc})
}

// TraceBuiltin implements Tracer.
func (r *Recorder) TraceBuiltin(taskID int, name string) {
	r.write(recordEvent{Kind: "builtin", Task: taskID, Builtin: name})
}

// RecordHalt appends the terminal event: either a clean stop or the fatal
// error that ended the run. Call exactly once, after Scheduler.Run returns.
func (r *Recorder) RecordHalt(vmErr *VMError) {
	if r == nil || r.done {
		return
	}
	if vmErr == nil {
		r.write(recordEvent{Kind: "halt"})
	} else {
		r.write(recordEvent{Kind: "panic", Task: vmErr.TaskID, PC: vmErr.PC, Code: vmErr.Code.String(), Message: vmErr.Message})
	}
	r.done = true
}

// Replayer reads back a Recorder's NDJSON log for offline inspection or
// for asserting that a second run of the same program produced an
// identical instruction trace.
type Replayer struct {
	events []recordEvent
	next   int
}

// NewReplayer parses every line of r as a recordEvent; a malformed line
// fails the whole load, since a partial trace cannot be replayed.
func NewReplayer(r io.Reader) (*Replayer, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var events []recordEvent
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev recordEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("vm: replay log line %d: %w", lineNo, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vm: replay log: %w", err)
	}
	return &Replayer{events: events}, nil
}

// Len reports how many events remain unconsumed.
func (r *Replayer) Len() int { return len(r.events) - r.next }

// Next returns the next event in the log, advancing the cursor.
func (r *Replayer) Next() (recordEvent, bool) {
	if r.next >= len(r.events) {
		return recordEvent{}, false
	}
	ev := r.events[r.next]
	r.next++
	return ev, true
}

// Equal reports whether this replay's events match another's exactly, in
// order; used by golden tests asserting that re-running a program under
// the same fuel/quantum produces a bit-identical trace (determinism is
// the whole point of a cooperative, single-threaded scheduler).
func (r *Replayer) Equal(other *Replayer) bool {
	if len(r.events) != len(other.events) {
		return false
	}
	for i, ev := range r.events {
		if ev != other.events[i] {
			return false
		}
	}
	return true
}
