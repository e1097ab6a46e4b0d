// Package wpool is a small fixed-size worker pool supervised by a
// gopkg.in/tomb.v2 tomb, adapted from the teacher's abandoned
// internal/worker.go (it declared package server but lived outside
// internal/server and nothing imported it).
package wpool

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultTaskChanSize = 100

// WorkerFunction processes one task. Returning a non-nil error kills the
// owning tomb, which is fatal for every worker sharing it.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// Pool runs a fixed number of goroutines pulling tasks off a shared channel.
type Pool struct {
	n     int
	tasks chan any
	work  WorkerFunction
}

// New creates a pool with room for size concurrent workers.
func New(size int) Pool {
	return Pool{
		tasks: make(chan any, defaultTaskChanSize),
		n:     size,
	}
}

// AddTask enqueues a task for some idle worker to pick up.
func (p *Pool) AddTask(task any) {
	p.tasks <- task
}

// Setup launches and maintains size workers under t until t dies. It blocks,
// so callers run it via t.Go.
func (p *Pool) Setup(t *tomb.Tomb, work WorkerFunction) {
	p.work = work
	log.Info().Int("workers", p.n).Msg("starting worker pool")

	active := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if active < p.n {
				t.Go(func() error {
					err := p.worker(t)
					active--
					return err
				})
				active++
			}
		}
	}
}

func (p *Pool) worker(t *tomb.Tomb) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-p.tasks:
		if err := p.work(t, task); err != nil {
			log.Error().Err(err).Msg("worker exiting on error")
			return err
		}
	}
	return nil
}
