package ifl

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

//Task is a unit of work for the pool.
type Task interface {
	Run()
}

//Pool is a fixed-size worker pool fed through a channel.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

//NewPool starts threadsNum workers consuming tasks.
func NewPool(threadsNum int) *Pool {
	taskPool := &Pool{tasks: make(chan Task)}
	for p := 0; p < threadsNum; p++ {
		taskPool.wg.Add(1)
		go func() {
			defer taskPool.wg.Done()
			for task := range taskPool.tasks {
				task.Run()
			}
		}()
	}
	return taskPool
}

//AddTask queues one task. It blocks while all workers are busy.
func (taskPool *Pool) AddTask(task Task) {
	taskPool.tasks <- task
}

//Close signals that no more tasks will be added.
func (taskPool *Pool) Close() {
	close(taskPool.tasks)
}

//WaitAll blocks until every queued task has finished.
func (taskPool *Pool) WaitAll() {
	taskPool.wg.Wait()
}

//TaskSolveRHS solves one right-hand side and stores the solution and error
//at a fixed index. Distinct right-hand sides share only the read-only theta,
//so they are safe to run in parallel.
type TaskSolveRHS struct {
	solutions []*mat.VecDense
	errs      []error
	index     int
	solve     func() (*mat.VecDense, error)
}

func (task *TaskSolveRHS) Run() {
	task.solutions[task.index], task.errs[task.index] = task.solve()
}

//TaskLissaRepeat runs one independent LiSSA repeat.
type TaskLissaRepeat struct {
	repeat int
	run    func(int)
}

func (task *TaskLissaRepeat) Run() {
	task.run(task.repeat)
}
