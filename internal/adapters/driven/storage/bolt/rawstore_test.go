package bolt

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

func newTestStore(t *testing.T) *RawStore {
	t.Helper()
	s, err := NewRawStore(Path(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRawStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "2024", "CVE-2024-0001.json", []byte(`{"a":1}`)))
	require.NoError(t, s.Put(ctx, "2024", "CVE-2024-0001.json", []byte(`{"a":2}`)))

	got, err := s.Get(ctx, "2024", "CVE-2024-0001.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))
}

func TestRawStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "2024", "nope.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Put(ctx, "2024", "CVE-2024-0001.json", []byte(`{}`)))
	_, err = s.Get(ctx, "2024", "nope.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRawStore_ListSorted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, name := range []string{"CVE-2024-0003.json", "CVE-2024-0001.json", "CVE-2024-0002.json"} {
		require.NoError(t, s.Put(ctx, "2024", name, []byte(`{}`)))
	}
	require.NoError(t, s.Put(ctx, "2023", "CVE-2023-0001.json", []byte(`{}`)))

	names, err := s.List(ctx, "2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"CVE-2024-0001.json", "CVE-2024-0002.json", "CVE-2024-0003.json"}, names)

	names, err = s.List(ctx, "1999")
	require.NoError(t, err)
	assert.Empty(t, names)

	partitions, err := s.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023", "2024"}, partitions)
}

func TestRawStore_ConcurrentPut(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Put(ctx, "2024", fmt.Sprintf("CVE-2024-%04d.json", i), []byte(`{}`)))
		}(i)
	}
	wg.Wait()

	names, err := s.List(ctx, "2024")
	require.NoError(t, err)
	assert.Len(t, names, 50)
}

func TestRawStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := Path(t.TempDir())

	s, err := NewRawStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "2024", "CVE-2024-0001.json", []byte(`{}`)))
	require.NoError(t, s.Close())

	s, err = NewRawStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "2024", "CVE-2024-0001.json")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got))
}
