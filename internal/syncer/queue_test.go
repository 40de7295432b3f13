package syncer

import (
	"testing"

	"github.com/agentic-research/codepad/internal/tree"
	"github.com/stretchr/testify/assert"
)

func kinds(q *queue) []jobKind {
	var out []jobKind
	for _, j := range q.jobs {
		out = append(out, j.kind)
	}
	return out
}

func TestQueueTreeSaveSupersedesPendingRemoteJobs(t *testing.T) {
	q := newQueue()
	a, b := tree.Default("a"), tree.Default("b")

	q.push(job{kind: jobSaveTree, root: a})
	q.push(job{kind: jobFlushLocal})
	q.push(job{kind: jobSaveFile, fileID: "f", content: "x"})
	q.push(job{kind: jobSaveTree, root: b})

	assert.Equal(t, []jobKind{jobFlushLocal, jobSaveTree}, kinds(q))
	assert.Same(t, b, q.jobs[1].root)
}

func TestQueueMergesContentSavesPerFile(t *testing.T) {
	q := newQueue()
	q.push(job{kind: jobSaveFile, fileID: "f", content: "1"})
	q.push(job{kind: jobSaveFile, fileID: "f", content: "2"})
	q.push(job{kind: jobSaveFile, fileID: "g", content: "a"})
	q.push(job{kind: jobSaveFile, fileID: "f", content: "3"})

	assert.Len(t, q.jobs, 3)
	assert.Equal(t, "2", q.jobs[0].content)
	assert.Equal(t, "3", q.jobs[2].content)
}

func TestQueueKeepsOneLocalFlush(t *testing.T) {
	q := newQueue()
	q.push(job{kind: jobFlushLocal})
	q.push(job{kind: jobSaveTree})
	q.push(job{kind: jobFlushLocal})
	assert.Equal(t, []jobKind{jobFlushLocal, jobSaveTree}, kinds(q))
}

func TestQueueNeverMergesAcrossBarrier(t *testing.T) {
	q := newQueue()
	done := make(chan struct{})
	q.push(job{kind: jobSaveFile, fileID: "f", content: "1"})
	q.push(job{kind: jobFlushLocal})
	q.push(job{kind: jobBarrier, done: done})
	q.push(job{kind: jobSaveFile, fileID: "f", content: "2"})
	q.push(job{kind: jobFlushLocal})
	q.push(job{kind: jobSaveTree})

	assert.Equal(t, []jobKind{jobSaveFile, jobFlushLocal, jobBarrier, jobFlushLocal, jobSaveTree}, kinds(q))
	assert.Equal(t, "1", q.jobs[0].content)
}

func TestQueuePopIsFIFO(t *testing.T) {
	q := newQueue()
	q.push(job{kind: jobSaveFile, fileID: "a"})
	q.push(job{kind: jobFlushLocal})

	j, ok := q.pop()
	assert.True(t, ok)
	assert.Equal(t, "a", j.fileID)
	j, ok = q.pop()
	assert.True(t, ok)
	assert.Equal(t, jobFlushLocal, j.kind)
	_, ok = q.pop()
	assert.False(t, ok)
}

func TestDirtySet(t *testing.T) {
	d := newDirtySet()
	assert.True(t, d.empty())
	d.mark("a", "b", "a")
	assert.True(t, d.contains("a"))
	assert.False(t, d.contains("z"))
	assert.ElementsMatch(t, []string{"a", "b"}, d.take())
	assert.True(t, d.empty())

	d.mark("b")
	assert.Equal(t, []string{"b"}, d.take())
}
