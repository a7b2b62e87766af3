package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterGet(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn("a")
	s := Session{ID: 1, DisplayName: "User1", Color: "#FF6B6B"}

	require.NoError(t, r.Register(conn, s))
	got, err := r.Get(conn)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, 1, r.Count())

	t.Run("duplicate handle is rejected", func(t *testing.T) {
		err := r.Register(conn, Session{ID: 2})
		assert.ErrorIs(t, err, ErrDuplicateHandle)

		got, err := r.Get(conn)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.ID, "first registration must survive")
		assert.Equal(t, 1, r.Count())
	})

	t.Run("unknown handle is not found", func(t *testing.T) {
		_, err := r.Get(newFakeConn("b"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn("a")
	require.NoError(t, r.Register(conn, Session{ID: 1, DisplayName: "User1"}))

	got, err := r.Get(conn)
	require.NoError(t, err)
	got.DisplayName = "mutated"

	again, err := r.Get(conn)
	require.NoError(t, err)
	assert.Equal(t, "User1", again.DisplayName)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn("a")
	require.NoError(t, r.Register(conn, Session{ID: 1, DisplayName: "User1"}))

	s, ok := r.Unregister(conn)
	assert.True(t, ok)
	assert.Equal(t, "User1", s.DisplayName)
	assert.Equal(t, 0, r.Count())

	s, ok = r.Unregister(conn)
	assert.False(t, ok, "second unregister is a no-op")
	assert.Zero(t, s)
}

func TestRegistry_Rename(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn("a")
	require.NoError(t, r.Register(conn, Session{ID: 1, DisplayName: "User1"}))

	old, err := r.Rename(conn, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "User1", old)

	got, err := r.Get(conn)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	_, err = r.Rename(newFakeConn("b"), "Bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn("a"), newFakeConn("b")
	require.NoError(t, r.Register(a, Session{ID: 1}))
	require.NoError(t, r.Register(b, Session{ID: 2}))

	snap := r.Snapshot()
	require.Len(t, snap, 2)

	r.Unregister(a)
	require.NoError(t, r.Register(newFakeConn("c"), Session{ID: 3}))

	assert.Len(t, snap, 2)
	assert.ElementsMatch(t, []Conn{a, b}, snap)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	const n = 100

	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("conn-%d", i))
	}

	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Register(c, Session{ID: uint64(i + 1)}))
			_ = r.Snapshot()
			_, _ = r.Rename(c, fmt.Sprintf("name-%d", i))
			if i%2 == 0 {
				r.Unregister(c)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n/2, r.Count())
	assert.Len(t, r.Snapshot(), n/2)
}
