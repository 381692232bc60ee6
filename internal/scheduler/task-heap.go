package scheduler

import (
	"container/heap"
	"sync/atomic"
	"time"
)

type (
	// Task is a recurring task and its next execution time
	Task struct {
		TaskDefinition
		At      time.Time
		running atomic.Bool
		index   int
	}

	// TaskHeap stores scheduled tasks ordered by execution time
	TaskHeap struct {
		items []*Task
		byID  map[string]*Task
	}
)

// NewTaskHeap creates an empty task heap keyed by task ID
func NewTaskHeap() *TaskHeap {
	h := &TaskHeap{
		byID: map[string]*Task{},
	}
	heap.Init(h)
	return h
}

// Insert adds a task to the heap or replaces the task with the same ID
func (h *TaskHeap) Insert(t *Task) {
	if t == nil || t.Fn == nil || t.At.IsZero() {
		return
	}
	if old, ok := h.byID[t.ID]; ok {
		if old != t {
			old.TaskDefinition = t.TaskDefinition
		}
		old.At = t.At
		heap.Fix(h, old.index)
		return
	}
	heap.Push(h, t)
}

// PopTask removes and returns the next scheduled task
func (h *TaskHeap) PopTask() *Task {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*Task)
}

// Peek returns the next scheduled task without removing it
func (h *TaskHeap) Peek() *Task {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

// Cancel removes the task with the given ID
func (h *TaskHeap) Cancel(id string) {
	t, ok := h.byID[id]
	if !ok {
		return
	}
	heap.Remove(h, t.index)
}

// Len returns the number of scheduled tasks in the heap
func (h *TaskHeap) Len() int {
	return len(h.items)
}

// Less reports whether the task at i should sort before the task at j
func (h *TaskHeap) Less(i, j int) bool {
	return h.items[i].At.Before(h.items[j].At)
}

// Swap exchanges the heap items at the provided indexes
func (h *TaskHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds a task to the underlying heap implementation
func (h *TaskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(h.items)
	h.items = append(h.items, t)
	h.byID[t.ID] = t
}

// Pop removes a task from the underlying heap implementation
func (h *TaskHeap) Pop() any {
	old := h.items
	n := len(old)
	if n == 0 {
		return nil
	}
	t := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	t.index = -1
	delete(h.byID, t.ID)
	return t
}
