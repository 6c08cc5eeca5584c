package worker

import (
	"context"
	"fmt"
)

// Task is a named unit of work, e.g. warming one report section
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskResult reports how a task finished
type TaskResult struct {
	Name  string
	Err   error
	index int
}

// GetError returns the task's error
func (r *TaskResult) GetError() error {
	return r.Err
}

type taskJob struct {
	task  Task
	index int
}

func (j *taskJob) Execute(ctx context.Context) Result {
	res := &TaskResult{Name: j.task.Name, index: j.index}
	if j.task.Run == nil {
		res.Err = fmt.Errorf("task %s: nothing to run", j.task.Name)
		return res
	}
	res.Err = j.task.Run(ctx)
	return res
}

// RunTasks executes tasks concurrently on a pool and returns their results
// in the order the tasks were given. Tasks never submitted because ctx was
// cancelled report ctx's error.
func RunTasks(ctx context.Context, concurrency int, tasks []Task) []*TaskResult {
	if len(tasks) == 0 {
		return []*TaskResult{}
	}

	pool := NewPool(ctx, concurrency)
	pool.Start()

	ordered := make([]*TaskResult, len(tasks))
	for i, task := range tasks {
		if !pool.Submit(&taskJob{task: task, index: i}) {
			ordered[i] = &TaskResult{Name: task.Name, Err: ctx.Err(), index: i}
		}
	}

	for _, r := range pool.Wait() {
		tr := r.(*TaskResult)
		ordered[tr.index] = tr
	}

	// A job dequeued after cancellation never runs.
	for i, tr := range ordered {
		if tr == nil {
			ordered[i] = &TaskResult{Name: tasks[i].Name, Err: context.Canceled, index: i}
		}
	}
	return ordered
}

// Failed returns the results that carry an error
func Failed(results []*TaskResult) []*TaskResult {
	var out []*TaskResult
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
