package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()
	for _, m := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(&pending{req: Request{Method: m}}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		p, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, p.req.Method)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestRequestQueue_Close(t *testing.T) {
	q := newRequestQueue()
	require.True(t, q.Enqueue(&pending{}))
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(&pending{}), "enqueue after close must fail")

	_, ok := q.TryDequeue()
	assert.True(t, ok, "items queued before close remain")

	select {
	case <-q.Wait():
	default:
		t.Fatal("Wait channel should be closed")
	}
}

func TestRequestQueue_ConcurrentEnqueue(t *testing.T) {
	q := newRequestQueue()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Enqueue(&pending{})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Len())
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	r := NewClockAt(41)
	assert.Equal(t, int64(42), r.Next())
}

func TestIDGenerators(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })

	u := UUIDv7Generator{}
	id1, id2 := u.Generate(), u.Generate()
	assert.Len(t, id1, 36)
	assert.NotEqual(t, id1, id2)
}
