package syncer

import (
	"sync"

	"github.com/agentic-research/codepad/internal/tree"
)

type jobKind int

const (
	jobSaveTree jobKind = iota
	jobSaveFile
	jobFlushLocal
	jobReplaceLocal
	jobBarrier
)

type target int

const (
	targetNone target = iota
	targetRemote
	targetLocal
)

func (k jobKind) target() target {
	switch k {
	case jobSaveTree, jobSaveFile:
		return targetRemote
	case jobFlushLocal, jobReplaceLocal:
		return targetLocal
	default:
		return targetNone
	}
}

// job is one unit of persistence work.
type job struct {
	kind     jobKind
	root     *tree.Node // jobSaveTree, jobReplaceLocal
	fileID   string     // jobSaveFile
	content  string
	language string
	done     chan struct{} // jobBarrier
}

// queue is the FIFO drained by the engine's single worker. Jobs pushed after
// the last barrier may be merged with newer jobs for the same target, which
// never changes the final stored state: a whole-tree save supersedes every
// earlier remote save and a content save supersedes an earlier save of the
// same file.
type queue struct {
	mu   sync.Mutex
	jobs []job
	wake chan struct{}
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

func (q *queue) push(j job) {
	q.mu.Lock()
	q.jobs = q.merge(j)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// merge returns the pending list with j folded in. Must hold q.mu.
func (q *queue) merge(j job) []job {
	fence := 0
	for i := len(q.jobs) - 1; i >= 0; i-- {
		if q.jobs[i].kind == jobBarrier {
			fence = i + 1
			break
		}
	}
	tail := q.jobs[fence:]
	t := j.kind.target()

	switch j.kind {
	case jobSaveTree, jobReplaceLocal:
		kept := q.jobs[:fence:fence]
		for _, p := range tail {
			if p.kind.target() != t {
				kept = append(kept, p)
			}
		}
		return append(kept, j)

	case jobSaveFile:
		for i := len(tail) - 1; i >= 0; i-- {
			p := &tail[i]
			if p.kind.target() != t {
				continue
			}
			if p.kind == jobSaveFile && p.fileID == j.fileID {
				p.content, p.language = j.content, j.language
				return q.jobs
			}
			break
		}

	case jobFlushLocal:
		for _, p := range tail {
			if p.kind == jobFlushLocal {
				return q.jobs
			}
		}
	}
	return append(q.jobs, j)
}

func (q *queue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return job{}, false
	}
	j := q.jobs[0]
	q.jobs[0] = job{}
	q.jobs = q.jobs[1:]
	return j, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
