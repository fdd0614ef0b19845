package transfer

import (
	"fmt"
	"sync"
)

// Direction of a transfer task.
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// UnknownTotal marks a transfer whose total size is not declared by the
// backend. Percent is not computed for such tasks.
const UnknownTotal int64 = -1

// Task is one upload or download and its progress state. TransferredBytes
// never decreases and Percent is a non-decreasing integer in [0,100]
// while the task lives; a failed task is reset to zero before removal so
// no stale percentage stays visible.
type Task struct {
	ResourceID       string
	Direction        Direction
	TotalBytes       int64 // UnknownTotal when not declared
	TransferredBytes int64
	Percent          int // -1 when TotalBytes is unknown
}

// Tracker keys live tasks by resource identifier so concurrent transfers
// never clobber each other's progress counters.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[string]*Task)}
}

// Begin registers a new task, superseding any existing task for the same
// resource.
func (tr *Tracker) Begin(resourceID string, dir Direction, total int64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	task := &Task{
		ResourceID: resourceID,
		Direction:  dir,
		TotalBytes: total,
	}

	if total == UnknownTotal {
		task.Percent = -1
	}

	tr.tasks[resourceID] = task
}

// Advance records n more transferred bytes and returns the task snapshot
// after the update. Percent is recomputed as round(transferred*100/total)
// and clamped so it can never decrease or overshoot 100.
func (tr *Tracker) Advance(resourceID string, n int64) (Task, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	task, ok := tr.tasks[resourceID]
	if !ok {
		return Task{}, fmt.Errorf("transfer: no active task for resource %q", resourceID)
	}

	task.TransferredBytes += n

	if task.TotalBytes > 0 {
		pct := int((task.TransferredBytes*100 + task.TotalBytes/2) / task.TotalBytes)
		if pct > 100 {
			pct = 100
		}

		if pct > task.Percent {
			task.Percent = pct
		}
	}

	return *task, nil
}

// Get returns a snapshot of the task for the given resource.
func (tr *Tracker) Get(resourceID string) (Task, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	task, ok := tr.tasks[resourceID]
	if !ok {
		return Task{}, false
	}

	return *task, true
}

// Complete removes a finished task.
func (tr *Tracker) Complete(resourceID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	delete(tr.tasks, resourceID)
}

// Fail resets the task's progress to zero and removes it.
func (tr *Tracker) Fail(resourceID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	task, ok := tr.tasks[resourceID]
	if !ok {
		return
	}

	task.TransferredBytes = 0
	task.Percent = 0

	delete(tr.tasks, resourceID)
}
