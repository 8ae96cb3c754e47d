package sched

import (
	"lacevm/internal/heap"
	"lacevm/internal/vm"
)

// rotate walks the ring for one full revolution starting after the
// current task, retires done tasks (other than root), unblocks any
// blocked task with a favorable wait token, and selects the first
// runnable task encountered as the new current task. A revolution that
// finds no runnable candidate is a deadlock.
//
// The root finishing ends the program outright (the caller's next check
// of RootTask().Done stops the run loop), so a root that just executed
// DONE is never itself a deadlock verdict even when it is the only task
// left in the ring.
func (s *Scheduler) rotate() *vm.VMError {
	root := s.RootTask()
	if root.Done {
		return nil
	}
	n := len(s.Ring)

	var toRemove []*vm.Task
	var next *vm.Task

	for step := 1; step <= n; step++ {
		idx := (s.Current + step) % n
		task := s.Ring[idx]

		if task.Done {
			if task != root {
				toRemove = append(toRemove, task)
			}
			continue
		}

		if task.Blocked {
			if s.favorable(task) {
				task.Blocked = false
				task.Waiting = nil
			} else {
				continue
			}
		}

		if next == nil && task.Runnable() {
			next = task
		}
	}

	if len(toRemove) > 0 {
		s.Ring = removeAll(s.Ring, toRemove)
	}

	if next == nil {
		return vm.DeadlockError()
	}

	for i, t := range s.Ring {
		if t == next {
			s.Current = i
			break
		}
	}
	s.tick = 0
	return nil
}

// favorable reports whether any of task's wait tokens names a channel
// currently in the state that token was waiting for: empty for
// WAIT_SEND, full for WAIT_RECEIVE.
func (s *Scheduler) favorable(task *vm.Task) bool {
	h := s.VM.Heap
	for _, token := range task.Waiting {
		ch := h.WaitChannel(token)
		switch h.Tag(token) {
		case heap.TagWaitSend:
			if h.ChannelIsEmpty(ch) {
				return true
			}
		case heap.TagWaitReceive:
			if h.ChannelIsFull(ch) {
				return true
			}
		}
	}
	return false
}

func removeAll(ring []*vm.Task, remove []*vm.Task) []*vm.Task {
	dead := make(map[*vm.Task]bool, len(remove))
	for _, t := range remove {
		dead[t] = true
	}
	kept := ring[:0:0]
	for _, t := range ring {
		if !dead[t] {
			kept = append(kept, t)
		}
	}
	return kept
}
