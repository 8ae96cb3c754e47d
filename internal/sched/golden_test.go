package sched

import (
	"bytes"
	"strings"
	"testing"

	"lacevm/internal/asm"
	"lacevm/internal/vm"
)

// runSource assembles src, runs it to completion (or failure) against a
// fresh heap of heapBytes with the given quantum, and returns everything
// `display` printed plus the scheduler's terminal error (nil on a clean
// DONE). These scenarios exercise the whole stack end to end, wired
// through the real assembler/heap/interpreter/scheduler rather than any
// single package's unit tests.
func runSource(t *testing.T, name, src string, heapBytes, quantum, maxSteps int) (string, error) {
	t.Helper()
	prog, err := asm.Assemble(name, strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble(%s): %v", name, err)
	}
	var out bytes.Buffer
	machine := vm.New(prog, heapBytes)
	machine.Stdout = &out
	s := New(machine, quantum, prog.Entry)
	s.MaxSteps = maxSteps
	err = s.Run()
	return out.String(), err
}

// display(1 + 2) prints 3.
func TestArithmeticEcho(t *testing.T) {
	src := `
main:
    LD (0,display)
    LDC 1
    LDC 2
    BINOP +
    CALL 1
    POP
    DONE
`
	out, err := runSource(t, "echo", src, 1<<16, 64, 10_000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "3\n" {
		t.Fatalf("output = %q, want %q", out, "3\n")
	}
}

// cons(a,b) returns a selector closure; p(true) yields a, p(false)
// yields b.
func TestClosureCaptureSelector(t *testing.T) {
	src := `
main:
    ENTER_SCOPE 1          ; slot0 = p
    LDF cons 2
    LDC 1
    LDC 2
    CALL 2
    ASSIGN (0,0)

    LD (1,display)
    LD (0,0)               ; p
    LDC true
    CALL 1
    CALL 1
    POP

    LD (1,display)
    LD (0,0)
    LDC false
    CALL 1
    CALL 1
    POP

    EXIT_SCOPE
    DONE

cons:
    LDF inner 1
    RESET

inner:
    LD (0,0)               ; flag
    JOF pickB
    LD (1,0)               ; a
    GOTO selected
pickB:
    LD (1,1)               ; b
selected:
    RESET
`
	out, err := runSource(t, "cons", src, 1<<16, 64, 10_000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "1\n2\n" {
		t.Fatalf("output = %q, want %q", out, "1\n2\n")
	}
}

// main spawns a sender task, receives 42 from the child, and prints it.
func TestChannelRendezvous(t *testing.T) {
	src := `
main:
    ENTER_SCOPE 1          ; slot0 = c
    LD (1,make_channel)
    CALL 0
    ASSIGN (0,0)

    LAUNCH_THREAD afterSpawn
    LDF sender 0
    CALL 0
    DONE

afterSpawn:
    LD (1,display)
    LD (0,0)               ; c
    RECEIVE
    CALL 1
    POP
    EXIT_SCOPE
    DONE

sender:
    LD (1,0)               ; c
    LDC 42
    SEND
    RESET
`
	out, err := runSource(t, "rendezvous", src, 1<<16, 8, 10_000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "42\n" {
		t.Fatalf("output = %q, want %q", out, "42\n")
	}
}

// Deadlock detection from the receive side: a task blocked on RECEIVE
// with no sender anywhere in the ring, and no other runnable task, must
// be reported as a deadlock within one rotation (the mirror image of
// TestSendWithoutReceiverDeadlocks).
func TestDeadlockWithNoCounterpart(t *testing.T) {
	src := `
main:
    LD (0,make_channel)
    CALL 0
    RECEIVE
    DONE
`
	_, err := runSource(t, "deadlock", src, 1<<16, 8, 10_000)
	if err == nil {
		t.Fatal("expected a deadlock error, got nil")
	}
	if !strings.Contains(err.Error(), "LVM2010") {
		t.Fatalf("error = %v, want a deadlock (LVM2010) error", err)
	}
}

// main creates a channel and sends on it with nobody ever receiving. A
// plain SEND deposits into the empty slot and then parks the sender until
// that deposit is picked up; with no other task in the ring to ever issue
// the matching RECEIVE, the pickup never comes and the next rotation
// reports deadlock.
func TestSendWithoutReceiverDeadlocks(t *testing.T) {
	src := `
main:
    ENTER_SCOPE 1
    LD (1,make_channel)
    CALL 0
    ASSIGN (0,0)

    LD (0,0)
    LDC 1
    SEND

    EXIT_SCOPE
    DONE
`
	_, err := runSource(t, "send-deadlock", src, 1<<16, 8, 10_000)
	if err == nil {
		t.Fatal("expected a deadlock error, got nil")
	}
	if !strings.Contains(err.Error(), "LVM2010") {
		t.Fatalf("error = %v, want a deadlock (LVM2010) error", err)
	}
}

// An empty channel's receive case never fires, so the select's default
// case prints "none".
func TestSelectDefaultCase(t *testing.T) {
	src := `
main:
    ENTER_SCOPE 2          ; slot0=c slot1=v
    LD (1,make_channel)
    CALL 0
    ASSIGN (0,0)

    LD (0,0)               ; c
    ROF noneCase
    ASSIGN (0,1)
    LD (1,display)
    LD (0,1)
    CALL 1
    POP
    CLEAR_WAIT
    GOTO selectEnd

noneCase:
    POP
    LD (1,display)
    LDC "none"
    CALL 1
    POP
    CLEAR_WAIT

selectEnd:
    EXIT_SCOPE
    DONE
`
	out, err := runSource(t, "select-default", src, 1<<16, 8, 10_000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "none\n" {
		t.Fatalf("output = %q, want %q", out, "none\n")
	}
}

// A producer task selects between sending the next fibonacci number on c
// and receiving a quit signal; main plays the consumer, receiving ten
// values and then signalling quit.
func TestFibonacciOverChannels(t *testing.T) {
	src := `
main:
    ENTER_SCOPE 3           ; slot0=c slot1=quit slot2=count
    LD (1,make_channel)
    CALL 0
    ASSIGN (0,0)
    LD (1,make_channel)
    CALL 0
    ASSIGN (0,1)
    LDC 0
    ASSIGN (0,2)

    LAUNCH_THREAD afterSpawn
    LDF producer 0
    CALL 0
    DONE

afterSpawn:
loopTop:
    LD (0,2)
    LDC 10
    BINOP <
    JOF loopEnd

    LD (1,display)
    LD (0,0)                ; c
    RECEIVE
    CALL 1
    POP

    LD (0,2)
    LDC 1
    BINOP +
    ASSIGN (0,2)
    GOTO loopTop

loopEnd:
    LD (0,1)                ; quit
    LDC 1
    SEND

    LD (1,display)
    LDC "quit"
    CALL 1
    POP

    EXIT_SCOPE
    DONE

producer:
    ENTER_SCOPE 2            ; slot0=a slot1=b
    LDC 0
    ASSIGN (0,0)
    LDC 1
    ASSIGN (0,1)

prodLoop:
    CLEAR_WAIT
    LD (2,0)                 ; c
    LD (0,0)                 ; a
    SOF prodTryQuit
    LD (0,0)
    LD (0,1)
    BINOP +
    LD (0,1)
    ASSIGN (0,0)
    ASSIGN (0,1)
    GOTO prodLoop

prodTryQuit:
    POP
    POP
    LD (2,1)                 ; quit
    ROF prodLoop
    POP
    CLEAR_WAIT
    RESET
`
	out, err := runSource(t, "fib", src, 1<<16, 4, 200_000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "0\n1\n1\n2\n3\n5\n8\n13\n21\n34\nquit\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

// A program whose entire allocation history stays live must exhaust a
// growth-capped heap, and the exhaustion surfaces as an ordinary fatal
// error through the scheduler, exactly like deadlock does.
func TestAllocationExhaustionIsFatalError(t *testing.T) {
	src := `
main:
loop:
    LDC 1
    GOTO loop
`
	prog, err := asm.Assemble("oom", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	machine := vm.New(prog, 64*10*8)
	machine.Heap.SetLimitBytes(64 * 10 * 8)
	s := New(machine, 8, prog.Entry)
	s.MaxSteps = 1_000_000
	err = s.Run()
	if err == nil {
		t.Fatal("expected an out-of-memory error, got nil")
	}
	if !strings.Contains(err.Error(), "LVM2011") {
		t.Fatalf("error = %v, want an out-of-memory (LVM2011) error", err)
	}
}

// A loop that allocates far more numbers than a tiny heap can hold at
// once must still terminate, proving collection and/or growth reclaim or
// expand enough to keep going.
func TestGCUnderAllocationPressure(t *testing.T) {
	src := `
main:
    ENTER_SCOPE 1           ; slot0 = i
    LDC 0
    ASSIGN (0,0)

loopTop:
    LD (0,0)
    LDC 500
    BINOP <
    JOF loopEnd

    LD (1,display)
    LD (0,0)                ; i
    CALL 1
    POP

    LD (0,0)
    LDC 1
    BINOP +
    ASSIGN (0,0)
    GOTO loopTop

loopEnd:
    EXIT_SCOPE
    DONE
`
	// 8 nodes: tight enough that the loop must trigger several
	// collections (and possibly a growth) to finish at all.
	out, err := runSource(t, "gc-pressure", src, 8*10*8, 32, 2_000_000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 500 {
		t.Fatalf("got %d printed lines, want 500", len(lines))
	}
	if lines[0] != "0" || lines[len(lines)-1] != "499" {
		t.Fatalf("first/last lines = %q/%q, want 0/499", lines[0], lines[len(lines)-1])
	}
}
