package sandbox

import (
	"time"

	"github.com/dop251/goja"
	"github.com/emirpasic/gods/queues/priorityqueue"
)

// minTimerDelay mirrors the host clamp applied to setTimeout/setInterval delays.
const minTimerDelay = time.Millisecond

// timer is one unit of deferred work.
type timer struct {
	id        int64
	due       time.Duration // virtual time at which the timer fires
	seq       uint64        // scheduling order, breaks ties between equal due times
	interval  time.Duration // repeat period, zero for one-shot timers
	fn        goja.Callable
	args      []goja.Value
	cancelled bool
}

// TaskQueue is the deferred-work queue of one evaluation context.
// Timers fire in due-time order on a virtual clock; timers with the same due
// time fire in the order they were scheduled.
type TaskQueue struct {
	now    time.Duration
	seq    uint64
	nextID int64
	queue  *priorityqueue.Queue
	active map[int64]*timer
}

// NewTaskQueue creates an empty queue with its virtual clock at zero.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		queue:  priorityqueue.NewWith(compareTimers),
		active: make(map[int64]*timer),
	}
}

func compareTimers(a, b interface{}) int {
	ta, tb := a.(*timer), b.(*timer)
	switch {
	case ta.due < tb.due:
		return -1
	case ta.due > tb.due:
		return 1
	case ta.seq < tb.seq:
		return -1
	case ta.seq > tb.seq:
		return 1
	default:
		return 0
	}
}

// Schedule enqueues fn to run after delay of virtual time and returns its id.
// A positive interval makes the timer repeat until cancelled.
func (q *TaskQueue) Schedule(delay, interval time.Duration, fn goja.Callable, args []goja.Value) int64 {
	q.nextID++
	t := &timer{
		id:       q.nextID,
		interval: interval,
		fn:       fn,
		args:     args,
	}
	q.push(t, delay)
	q.active[t.id] = t
	return t.id
}

// Cancel stops a pending timer. Unknown ids are ignored.
func (q *TaskQueue) Cancel(id int64) {
	if t, ok := q.active[id]; ok {
		t.cancelled = true
		delete(q.active, id)
	}
}

// Peek returns the next timer to fire without removing it.
func (q *TaskQueue) Peek() (*timer, bool) {
	for {
		v, ok := q.queue.Peek()
		if !ok {
			return nil, false
		}
		t := v.(*timer)
		if !t.cancelled {
			return t, true
		}
		q.queue.Dequeue()
	}
}

// Pop removes the next timer, advances the virtual clock to its due time and
// re-arms it when it repeats.
func (q *TaskQueue) Pop() (*timer, bool) {
	t, ok := q.Peek()
	if !ok {
		return nil, false
	}
	q.queue.Dequeue()
	if t.due > q.now {
		q.now = t.due
	}
	if t.interval > 0 {
		q.push(t, t.interval)
	} else {
		delete(q.active, t.id)
	}
	return t, true
}

// Len returns the number of pending timers.
func (q *TaskQueue) Len() int {
	return len(q.active)
}

// Now returns the current virtual time.
func (q *TaskQueue) Now() time.Duration {
	return q.now
}

func (q *TaskQueue) push(t *timer, delay time.Duration) {
	q.seq++
	t.seq = q.seq
	t.due = q.now + delay
	q.queue.Enqueue(t)
}

// clampDelay converts a JS delay argument (milliseconds) to a Duration.
// Non-finite, negative and sub-millisecond delays become minTimerDelay.
func clampDelay(ms float64) time.Duration {
	if ms != ms || ms < 1 || ms > float64(1<<31-1) {
		return minTimerDelay
	}
	return time.Duration(int64(ms)) * time.Millisecond
}

// installTimers binds the timer globals to the context's task queue.
func (c *Context) installTimers() error {
	globals := map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":     c.setTimer(false),
		"setInterval":    c.setTimer(true),
		"setImmediate":   c.setImmediate,
		"clearTimeout":   c.clearTimer,
		"clearInterval":  c.clearTimer,
		"clearImmediate": c.clearTimer,
	}
	for name, fn := range globals {
		if err := c.vm.Set(name, fn); err != nil {
			return err
		}
	}
	perf := c.vm.NewObject()
	if err := perf.Set("now", func(goja.FunctionCall) goja.Value {
		return c.vm.ToValue(float64(c.tasks.Now()) / float64(time.Millisecond))
	}); err != nil {
		return err
	}
	if err := c.vm.Set("performance", perf); err != nil {
		return err
	}
	_, err := c.vm.RunString(microtaskPrelude)
	return err
}

// microtaskPrelude defines queueMicrotask on top of promise jobs.
const microtaskPrelude = `
globalThis.queueMicrotask = function queueMicrotask(callback) {
	if (typeof callback !== "function") {
		throw new TypeError('The "callback" argument of queueMicrotask must be of type function');
	}
	Promise.resolve().then(function () { callback(); });
};
`

func (c *Context) callback(v goja.Value, api string) goja.Callable {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(c.vm.NewTypeError(`The "callback" argument of %s must be of type function`, api))
	}
	return fn
}

func (c *Context) setTimer(repeat bool) func(goja.FunctionCall) goja.Value {
	api := "setTimeout"
	if repeat {
		api = "setInterval"
	}
	return func(call goja.FunctionCall) goja.Value {
		fn := c.callback(call.Argument(0), api)
		delay := clampDelay(call.Argument(1).ToFloat())
		if goja.IsUndefined(call.Argument(1)) {
			delay = minTimerDelay
		}
		var interval time.Duration
		if repeat {
			interval = delay
		}
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}
		return c.vm.ToValue(c.tasks.Schedule(delay, interval, fn, args))
	}
}

func (c *Context) setImmediate(call goja.FunctionCall) goja.Value {
	fn := c.callback(call.Argument(0), "setImmediate")
	var args []goja.Value
	if len(call.Arguments) > 1 {
		args = append(args, call.Arguments[1:]...)
	}
	return c.vm.ToValue(c.tasks.Schedule(0, 0, fn, args))
}

func (c *Context) clearTimer(call goja.FunctionCall) goja.Value {
	id := call.Argument(0)
	if goja.IsUndefined(id) || goja.IsNull(id) {
		return goja.Undefined()
	}
	c.tasks.Cancel(id.ToInteger())
	return goja.Undefined()
}
