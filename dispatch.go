package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Handler performs the real work for one task verb. Implementations call
// out to external capabilities (LLM chat, search, OS automation) and are
// expected to honor ctx cancellation.
type Handler func(ctx context.Context, ownerID, arg string) (any, error)

// TaskResult is one streamed outcome. Results arrive in completion
// order, not submission order; callers correlate by ID.
type TaskResult struct {
	ID      string `json:"id"`
	Verb    Verb   `json:"verb"`
	Kind    string `json:"type"`
	Content any    `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

type handlerEntry struct {
	kind string // result kind reported to the client ("chat", "action", ...)
	fn   Handler
}

// Dispatcher fans tasks out to their handlers with bounded concurrency.
// A failing, panicking, or timed-out handler yields an error-kind result
// for that task only; sibling tasks are unaffected.
type Dispatcher struct {
	handlers map[Verb]handlerEntry
	sem      *semaphore.Weighted
	timeout  time.Duration
}

func newDispatcher(cfg DispatchConfig) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Verb]handlerEntry),
		sem:      semaphore.NewWeighted(int64(cfg.maxConcurrentOrDefault())),
		timeout:  cfg.taskTimeoutOrDefault(),
	}
}

// Register binds a verb to a handler. kind names the result type the
// client sees for this verb.
func (d *Dispatcher) Register(verb Verb, kind string, fn Handler) {
	d.handlers[verb] = handlerEntry{kind: kind, fn: fn}
}

// Dispatch launches one unit of work per task and returns a channel that
// streams results as they complete. The channel closes once every task
// has produced its result (exit and noop produce none).
func (d *Dispatcher) Dispatch(ctx context.Context, ownerID string, tasks []Task) <-chan TaskResult {
	out := make(chan TaskResult, len(tasks))
	var wg sync.WaitGroup

	for _, task := range tasks {
		if task.Verb == VerbExit || task.Verb == VerbNoop {
			continue
		}
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			out <- d.runTask(ctx, ownerID, t)
		}(task)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (d *Dispatcher) runTask(ctx context.Context, ownerID string, t Task) TaskResult {
	res := TaskResult{
		ID:   uuid.NewString(),
		Verb: t.Verb,
		Raw:  t.Raw,
	}

	entry, ok := d.handlers[t.Verb]
	if !ok {
		res.Kind = "error"
		res.Error = fmt.Sprintf("no handler for verb %q", t.Verb)
		res.Content = res.Error
		return res
	}
	res.Kind = entry.kind

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return errorResult(res, err)
	}
	defer d.sem.Release(1)

	tctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	content, err := invoke(tctx, entry.fn, ownerID, t.Argument)
	if err != nil {
		logWarn("task failed", "verb", t.Verb, "owner", ownerID, "error", err)
		return errorResult(res, err)
	}
	res.Content = content
	return res
}

type handlerOutcome struct {
	content any
	err     error
}

// invoke runs the handler on its own goroutine so a handler that
// ignores ctx can still be timed out; the slot is released either way.
// Panics are confined to the task that raised them.
func invoke(ctx context.Context, fn Handler, ownerID, arg string) (any, error) {
	ch := make(chan handlerOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- handlerOutcome{err: fmt.Errorf("handler panic: %v", p)}
			}
		}()
		content, err := fn(ctx, ownerID, arg)
		ch <- handlerOutcome{content: content, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-ch:
		return o.content, o.err
	}
}

func errorResult(res TaskResult, err error) TaskResult {
	res.Kind = "error"
	res.Error = err.Error()
	res.Content = err.Error()
	return res
}
