package timeutil

import (
	"time"
)

// Executor runs a task at most once per interval. Call Execute from a
// polling loop; the task runs on the first poll and then again whenever at
// least one interval has passed since the last run. Polls in between do
// nothing.
type Executor struct {
	every time.Duration
	last  time.Time
	task  func()
}

// NewExecutor creates an executor for the given interval and task.
func NewExecutor(every time.Duration, task func()) *Executor {
	return &Executor{every: every, task: task}
}

// Execute runs the task if it is due and reports whether it ran.
func (e *Executor) Execute(now time.Time) bool {
	if !e.last.IsZero() && now.Sub(e.last) < e.every {
		return false
	}
	e.last = now
	e.task()
	return true
}
