// File: internal/usecase/fanout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"agent-compute-platform/internal/domain/ports/adapter"
	"agent-compute-platform/internal/infra/worker"
)

// SubTask is one independent read-only unit of a parallel group. Children
// must not write session state; they communicate results back to the parent
// only via return values.
type SubTask func(ctx context.Context) (any, error)

type SubTaskResult struct {
	Index int
	Value any
	Err   error
}

// FanOut runs independent sub-tasks with bounded parallelism and waits for
// all children before the parent resumes. Failures of individual children
// are isolated and do not cancel siblings.
type FanOut struct {
	pool *worker.Pool
}

func NewFanOut(pool *worker.Pool) *FanOut { return &FanOut{pool: pool} }

func (f *FanOut) Run(ctx context.Context, tasks []SubTask) []SubTaskResult {
	results := make([]SubTaskResult, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		i, task := i, task
		wg.Add(1)
		run := func(ctx context.Context) error {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = SubTaskResult{Index: i, Err: fmt.Errorf("sub-task panic: %v", r)}
				}
			}()
			v, err := task(ctx)
			results[i] = SubTaskResult{Index: i, Value: v, Err: err}
			return nil
		}
		// When the queue is saturated, run inline rather than dropping:
		// the parent blocks either way until all children finish.
		if err := f.pool.Submit(run); errors.Is(err, worker.ErrQueueFull) {
			_ = run(ctx)
		} else if err != nil {
			wg.Done()
			results[i] = SubTaskResult{Index: i, Err: err}
		}
	}

	wg.Wait()
	return results
}

// SummaryGroup fans the summarization of N retrieved documents out over the
// pool, one completion call per document.
type SummaryGroup struct {
	fan        *FanOut
	completion adapter.CompletionAdapter
	model      string
}

func NewSummaryGroup(fan *FanOut, completion adapter.CompletionAdapter, model string) *SummaryGroup {
	return &SummaryGroup{fan: fan, completion: completion, model: model}
}

// Summarize returns one summary per document, in input order. A failed child
// yields a placeholder instead of cancelling its siblings.
func (g *SummaryGroup) Summarize(ctx context.Context, docs []string) []string {
	tasks := make([]SubTask, len(docs))
	for i, doc := range docs {
		doc := doc
		tasks[i] = func(ctx context.Context) (any, error) {
			return g.completion.Complete(ctx, g.model, []adapter.Message{
				{Role: "system", Content: "Summarize the document in at most three sentences."},
				{Role: "user", Content: doc},
			})
		}
	}

	out := make([]string, len(docs))
	for _, r := range g.fan.Run(ctx, tasks) {
		if r.Err != nil {
			out[r.Index] = fmt.Sprintf("summary unavailable: %v", r.Err)
			continue
		}
		s, _ := r.Value.(string)
		out[r.Index] = s
	}
	return out
}
