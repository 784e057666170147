package tracing

import (
	"sync"

	"github.com/tebeka/atexit"
)

// DBTracer is a tracer that can store tasks into a database.
// DBTracers can connect with different backends so that the tasks can be stored
// in different types of databases.
type DBTracer struct {
	lock         sync.Mutex
	timeTeller   TimeTeller
	backend      TraceWriter
	tracingTasks map[string]Task
	terminated   bool
}

// NewDBTracer creates a new DBTracer and initializes its backend. The tracer
// is terminated when the program exits through atexit.
func NewDBTracer(
	timeTeller TimeTeller,
	backend TraceWriter,
) *DBTracer {
	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      backend,
		tracingTasks: make(map[string]Task),
	}

	backend.Init()

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.terminated {
		return
	}

	t.tracingTasks[task.ID] = task
}

// StepTask records a step of a task.
func (t *DBTracer) StepTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		step.Time = now
		originalTask.Steps = append(originalTask.Steps, step)
	}

	t.tracingTasks[task.ID] = originalTask
}

// EndTask marks the end of a task and hands it to the backend. The detail
// of the ending task, the outcome, replaces the detail given at start.
func (t *DBTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	originalTask.EndTime = now
	originalTask.Detail = task.Detail

	t.backend.Write(originalTask)
}

// InflightTasks returns the number of tasks that have started but not ended.
func (t *DBTracer) InflightTasks() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.tracingTasks)
}

// Terminate writes the tasks that never ended, without an end time, and
// flushes the backend. Tasks that start afterwards are ignored.
func (t *DBTracer) Terminate() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.terminated {
		return
	}

	t.terminated = true

	for _, task := range t.tracingTasks {
		t.backend.Write(task)
	}

	t.tracingTasks = nil
	t.backend.Flush()
}
