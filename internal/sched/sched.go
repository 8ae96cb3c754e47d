// Package sched implements the cooperative, time-sliced round-robin
// scheduler: an ordered ring of tasks, a quantum counter, channel
// blocking/unblocking, and deadlock detection.
package sched

import (
	"fmt"

	"lacevm/internal/heap"
	"lacevm/internal/vm"
)

// Scheduler owns the task ring and drives execution one instruction at a
// time against the shared VM. It implements vm.Spawner (for
// LAUNCH_THREAD) and heap.RootSource (so collect() can reach every task's
// roots plus the global environment).
type Scheduler struct {
	VM      *vm.VM
	Quantum int

	// MaxSteps bounds the total instructions Run will execute across every
	// task before giving up with ErrStepLimitExceeded; 0 means unbounded.
	// This is tooling (the `bench` CLI and tests bounding runaway fixtures),
	// never part of the core scheduling semantics.
	MaxSteps int

	Ring    []*vm.Task
	Current int
	Steps   int
	tick    int
	nextID  int
}

// ErrStepLimitExceeded is returned by Run when MaxSteps is positive and
// the program has not terminated within that many instructions.
var ErrStepLimitExceeded = fmt.Errorf("sched: step limit exceeded")

// New creates a scheduler with a single root task starting at pc with the
// VM's global environment, and wires itself into vm as both its spawner
// and the heap's root source.
func New(v *vm.VM, quantum int, entryPC int) *Scheduler {
	s := &Scheduler{VM: v, Quantum: quantum}
	root := vm.NewTask(s.nextID, entryPC, v.GlobalEnv)
	s.nextID++
	s.Ring = append(s.Ring, root)
	v.Spawner = s
	v.Heap.Roots = s
	return s
}

// Spawn implements vm.Spawner: LAUNCH_THREAD appends a new task to the end
// of the ring.
func (s *Scheduler) Spawn(pc int, env heap.Address) int {
	id := s.nextID
	s.nextID++
	s.Ring = append(s.Ring, vm.NewTask(id, pc, env))
	return id
}

// MarkRoots implements heap.RootSource: the global environment plus every
// task's own roots. The global environment is marked explicitly even
// though it is usually also reachable through any task whose environment
// chain still includes frame 0.
func (s *Scheduler) MarkRoots(mark func(heap.Address)) {
	mark(s.VM.GlobalEnv)
	for _, t := range s.Ring {
		t.MarkRoots(mark)
	}
}

// RootTask returns the task whose termination ends the whole program.
func (s *Scheduler) RootTask() *vm.Task {
	return s.Ring[0]
}

// ExitValue returns the top of the root task's operand stack, or
// undefined if it is empty.
func (s *Scheduler) ExitValue() heap.Address {
	root := s.RootTask()
	if len(root.Operand) == 0 {
		return s.VM.Heap.Undefined()
	}
	return root.Operand[len(root.Operand)-1]
}

// Run drives the scheduler until the root task is done (successful
// completion), a fatal VMError occurs (including deadlock), or MaxSteps
// instructions have run without termination.
func (s *Scheduler) Run() error {
	for !s.RootTask().Done {
		if s.MaxSteps > 0 && s.Steps >= s.MaxSteps {
			return ErrStepLimitExceeded
		}
		if err := s.StepOnce(); err != nil {
			return err
		}
	}
	return nil
}

// StepOnce executes exactly one instruction of the current task and
// performs whatever rotation that instruction's outcome calls for. It is
// the body Run drives in a loop, factored out so tooling (the `inspect`
// TUI) can single-step a program and observe the ring between steps.
func (s *Scheduler) StepOnce() error {
	current := s.Ring[s.Current]
	result, err := s.VM.Step(current)
	if err != nil {
		return err
	}
	s.tick++
	s.Steps++

	switch result {
	case vm.StepDone, vm.StepYielded:
		if err := s.rotate(); err != nil {
			return err
		}
	case vm.StepContinue:
		if s.tick >= s.Quantum {
			if err := s.rotate(); err != nil {
				return err
			}
		}
	}
	return nil
}
