package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDispatcher(maxConcurrent int, timeout string) *Dispatcher {
	return newDispatcher(DispatchConfig{MaxConcurrent: maxConcurrent, TaskTimeout: timeout})
}

func collect(ch <-chan TaskResult) []TaskResult {
	var out []TaskResult
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestDispatchFaultIsolation(t *testing.T) {
	d := testDispatcher(4, "5s")
	d.Register(VerbChat, "chat", func(ctx context.Context, ownerID, arg string) (any, error) {
		return "ok: " + arg, nil
	})
	d.Register(VerbOpenApp, "action", func(ctx context.Context, ownerID, arg string) (any, error) {
		return nil, fmt.Errorf("app %q not found", arg)
	})

	tasks := []Task{
		{Verb: VerbChat, Argument: "a"},
		{Verb: VerbChat, Argument: "b"},
		{Verb: VerbOpenApp, Argument: "ghost"},
		{Verb: VerbChat, Argument: "c"},
		{Verb: VerbChat, Argument: "d"},
	}
	results := collect(d.Dispatch(context.Background(), "u1", tasks))

	require.Len(t, results, len(tasks))
	var errCount int
	for _, r := range results {
		if r.Kind == "error" {
			errCount++
			assert.Contains(t, r.Error, "ghost")
		}
	}
	assert.Equal(t, 1, errCount)
}

func TestDispatchCompletionOrder(t *testing.T) {
	d := testDispatcher(4, "5s")
	d.Register(VerbChat, "chat", func(ctx context.Context, ownerID, arg string) (any, error) {
		if arg == "slow" {
			time.Sleep(100 * time.Millisecond)
		}
		return arg, nil
	})

	tasks := []Task{
		{Verb: VerbChat, Argument: "slow"},
		{Verb: VerbChat, Argument: "fast"},
	}
	results := collect(d.Dispatch(context.Background(), "u1", tasks))

	require.Len(t, results, 2)
	// Submitted first, but the slow task finishes last.
	assert.Equal(t, "fast", results[0].Content)
	assert.Equal(t, "slow", results[1].Content)
}

func TestDispatchExitAndNoopProduceNothing(t *testing.T) {
	d := testDispatcher(4, "5s")
	d.Register(VerbChat, "chat", func(ctx context.Context, ownerID, arg string) (any, error) {
		return arg, nil
	})

	tasks := []Task{
		{Verb: VerbExit},
		{Verb: VerbNoop},
		{Verb: VerbChat, Argument: "hello"},
	}
	results := collect(d.Dispatch(context.Background(), "u1", tasks))
	require.Len(t, results, 1)
	assert.Equal(t, "hello", results[0].Content)
}

func TestDispatchPanicIsolation(t *testing.T) {
	d := testDispatcher(4, "5s")
	d.Register(VerbChat, "chat", func(ctx context.Context, ownerID, arg string) (any, error) {
		return arg, nil
	})
	d.Register(VerbSystemCommand, "action", func(ctx context.Context, ownerID, arg string) (any, error) {
		panic("boom")
	})

	results := collect(d.Dispatch(context.Background(), "u1", []Task{
		{Verb: VerbSystemCommand, Argument: "x"},
		{Verb: VerbChat, Argument: "still here"},
	}))

	require.Len(t, results, 2)
	byVerb := map[Verb]TaskResult{}
	for _, r := range results {
		byVerb[r.Verb] = r
	}
	assert.Equal(t, "error", byVerb[VerbSystemCommand].Kind)
	assert.Contains(t, byVerb[VerbSystemCommand].Error, "panic")
	assert.Equal(t, "still here", byVerb[VerbChat].Content)
}

func TestDispatchTimeout(t *testing.T) {
	d := testDispatcher(4, "50ms")
	d.Register(VerbChat, "chat", func(ctx context.Context, ownerID, arg string) (any, error) {
		// Ignores ctx on purpose: the dispatcher must still time it out.
		time.Sleep(500 * time.Millisecond)
		return arg, nil
	})

	start := time.Now()
	results := collect(d.Dispatch(context.Background(), "u1", []Task{{Verb: VerbChat, Argument: "x"}}))
	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Kind)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestDispatchUnregisteredVerb(t *testing.T) {
	d := testDispatcher(4, "5s")
	results := collect(d.Dispatch(context.Background(), "u1", []Task{{Verb: VerbCallContact, Argument: "mẹ"}}))
	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Kind)
	assert.Contains(t, results[0].Error, "no handler")
}

func TestDispatchResultsCarryCorrelationIDs(t *testing.T) {
	d := testDispatcher(4, "5s")
	d.Register(VerbChat, "chat", func(ctx context.Context, ownerID, arg string) (any, error) {
		return arg, nil
	})

	results := collect(d.Dispatch(context.Background(), "u1", []Task{
		{Verb: VerbChat, Argument: "a", Raw: "chung a"},
		{Verb: VerbChat, Argument: "b", Raw: "chung b"},
	}))

	require.Len(t, results, 2)
	assert.NotEmpty(t, results[0].ID)
	assert.NotEmpty(t, results[1].ID)
	assert.NotEqual(t, results[0].ID, results[1].ID)
	for _, r := range results {
		assert.NotEmpty(t, r.Raw)
	}
}

func TestDispatchBoundedConcurrency(t *testing.T) {
	d := testDispatcher(1, "5s")
	var active, maxActive int
	var mu = make(chan struct{}, 1)
	mu <- struct{}{}
	d.Register(VerbChat, "chat", func(ctx context.Context, ownerID, arg string) (any, error) {
		<-mu
		active++
		if active > maxActive {
			maxActive = active
		}
		mu <- struct{}{}
		time.Sleep(20 * time.Millisecond)
		<-mu
		active--
		mu <- struct{}{}
		return arg, nil
	})

	var tasks []Task
	for i := 0; i < 4; i++ {
		tasks = append(tasks, Task{Verb: VerbChat, Argument: fmt.Sprint(i)})
	}
	results := collect(d.Dispatch(context.Background(), "u1", tasks))
	require.Len(t, results, 4)
	assert.Equal(t, 1, maxActive)
}
