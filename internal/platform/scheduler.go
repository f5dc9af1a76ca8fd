// Package platform provides the main-thread task scheduler and wake
// primitives the debugger agent builds on. The "foreground thread" is the
// goroutine that owns script execution; other goroutines hand work to it
// through a Scheduler and wake it through an AsyncHandle.
package platform

import "sync"

// Task is a unit of work to run on the foreground thread.
type Task func()

// Scheduler schedules and pumps foreground-thread tasks.
type Scheduler interface {
	// CallOnForegroundThread queues a task for the foreground thread.
	// Safe to call from any goroutine.
	CallOnForegroundThread(task Task)

	// PumpMessageLoop runs one pending task on the calling goroutine.
	// It returns false when no task was pending. It never blocks.
	PumpMessageLoop() bool
}

// TaskPump is the standard Scheduler: an unbounded FIFO with an
// auto-reset wake channel so an event loop can sleep until work arrives.
type TaskPump struct {
	mu    sync.Mutex
	tasks []Task
	wake  chan struct{}
}

// NewTaskPump creates an empty task pump.
func NewTaskPump() *TaskPump {
	return &TaskPump{
		wake: make(chan struct{}, 1),
	}
}

// CallOnForegroundThread queues a task and wakes the pumping loop.
func (p *TaskPump) CallOnForegroundThread(task Task) {
	if task == nil {
		return
	}

	p.mu.Lock()
	p.tasks = append(p.tasks, task)
	p.mu.Unlock()

	// Auto-reset: collapse overlapping wakes into one pending signal.
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// PumpMessageLoop runs the oldest pending task, if any.
func (p *TaskPump) PumpMessageLoop() bool {
	p.mu.Lock()
	if len(p.tasks) == 0 {
		p.mu.Unlock()
		return false
	}
	task := p.tasks[0]
	p.tasks = p.tasks[1:]
	p.mu.Unlock()

	task()
	return true
}

// WakeChannel returns the channel signalled when tasks are queued.
// Receiving drains at most one pending signal; callers should pump until
// PumpMessageLoop reports idle.
func (p *TaskPump) WakeChannel() <-chan struct{} {
	return p.wake
}

// Pending returns the number of queued tasks.
func (p *TaskPump) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}
