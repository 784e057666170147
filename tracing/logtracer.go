package tracing

import (
	"log"
	"time"
)

// LogTracer prints one line per task event.
type LogTracer struct {
	timeTeller TimeTeller
	logger     *log.Logger
}

// NewLogTracer creates a new LogTracer.
func NewLogTracer(logger *log.Logger, timeTeller TimeTeller) *LogTracer {
	t := new(LogTracer)
	t.logger = logger
	t.timeTeller = timeTeller

	return t
}

// StartTask prints the start of a task.
func (t *LogTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	t.logger.Printf("start, %s, %s, %s, %s, %s\n",
		task.StartTime.Format(time.RFC3339Nano),
		task.Where,
		task.ID,
		task.Kind,
		task.What,
	)
}

// StepTask prints the steps carried by the task.
func (t *LogTracer) StepTask(task Task) {
	now := t.timeTeller.CurrentTime()

	for _, step := range task.Steps {
		t.logger.Printf("step, %s, %s, %s\n",
			now.Format(time.RFC3339Nano), task.ID, step.What)
	}
}

// EndTask prints the end of a task. A failed task also prints its error.
func (t *LogTracer) EndTask(task Task) {
	task.EndTime = t.timeTeller.CurrentTime()

	if err, ok := task.Detail.(error); ok && err != nil {
		t.logger.Printf("end, %s, %s, %v\n",
			task.EndTime.Format(time.RFC3339Nano), task.ID, err)
		return
	}

	t.logger.Printf("end, %s, %s\n",
		task.EndTime.Format(time.RFC3339Nano), task.ID)
}
