package registry_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/facet"
	"github.com/plugforge/compose/registry"
)

func newFacet(t *testing.T, kind string, opts facet.Options) *facet.Facet {
	t.Helper()
	f, err := facet.New(kind, opts)
	require.NoError(t, err)
	return f
}

func TestAddRejectsKindMismatch(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)
	f := newFacet(t, "a", facet.Options{})

	err := r.Add("b", f, registry.AddOptions{})
	require.Error(t, err)
	var bad *cerrs.BadFacet
	require.ErrorAs(t, err, &bad)
}

func TestAddDuplicateWithoutOverwriteFails(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)
	f1 := newFacet(t, "a", facet.Options{})
	f2 := newFacet(t, "a", facet.Options{})

	require.NoError(t, r.Add("a", f1, registry.AddOptions{}))
	err := r.Add("a", f2, registry.AddOptions{})
	require.Error(t, err)
	var dup *cerrs.DuplicateKind
	require.ErrorAs(t, err, &dup)
}

func TestAddOverwritePermitsSecond(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)
	f1 := newFacet(t, "a", facet.Options{})
	f2 := newFacet(t, "a", facet.Options{Overwrite: true})
	f2.SetOrderIndex(1)
	f1.SetOrderIndex(0)

	require.NoError(t, r.Add("a", f1, registry.AddOptions{}))
	require.NoError(t, r.Add("a", f2, registry.AddOptions{}))

	assert.True(t, r.HasMultiple("a"))
	last, ok := r.Find("a")
	require.True(t, ok)
	assert.Same(t, f2, last)
}

func TestSameInstanceAddIsNoopForStorageButTracksTransaction(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)
	f := newFacet(t, "a", facet.Options{})
	require.NoError(t, r.Add("a", f, registry.AddOptions{}))
	assert.Equal(t, 1, r.Count("a"))

	r.Begin()
	require.NoError(t, r.Add("a", f, registry.AddOptions{}))
	assert.Equal(t, 1, r.Count("a"), "same instance must not duplicate storage")
	require.NoError(t, r.Commit())
}

func TestAddInitFailureRemovesFacet(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)
	f := newFacet(t, "a", facet.Options{})
	boom := errors.New("boom")
	_, err := f.OnInit(func(facet.InitArgs) error { return boom })
	require.NoError(t, err)

	err = r.Add("a", f, registry.AddOptions{Init: true})
	require.ErrorIs(t, err, boom)
	assert.False(t, r.Has("a"))
}

func TestGetByIndexIsInsertionOrder(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)
	f1 := newFacet(t, "a", facet.Options{})
	f2 := newFacet(t, "a", facet.Options{Overwrite: true})
	require.NoError(t, r.Add("a", f1, registry.AddOptions{}))
	require.NoError(t, r.Add("a", f2, registry.AddOptions{}))

	got0, ok := r.GetByIndex("a", 0)
	require.True(t, ok)
	assert.Same(t, f1, got0)

	got1, ok := r.GetByIndex("a", 1)
	require.True(t, ok)
	assert.Same(t, f2, got1)
}

func TestAttachConflictWhenNewFacetDoesNotPermitAttachOverwrite(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)
	// f1 attaches first. f2 is only allowed into the registry because the
	// caller passed hook-level Overwrite: true -- but f2 itself does not
	// permit overwrite, so re-attaching to it must fail.
	f1 := newFacet(t, "a", facet.Options{})
	f2 := newFacet(t, "a", facet.Options{Overwrite: false})
	f1.SetOrderIndex(0)
	f2.SetOrderIndex(1)

	require.NoError(t, r.Add("a", f1, registry.AddOptions{}))
	require.NoError(t, r.Attach("a"))

	require.NoError(t, r.Add("a", f2, registry.AddOptions{Overwrite: true}))

	err := r.Attach("a")
	require.Error(t, err)
	var conflict *cerrs.AttachConflict
	require.ErrorAs(t, err, &conflict)
}

func TestRollbackRestoresEmptyRegistry(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)
	f := newFacet(t, "a", facet.Options{})

	r.Begin()
	require.NoError(t, r.Add("a", f, registry.AddOptions{}))
	require.NoError(t, r.Rollback())

	assert.False(t, r.Has("a"))
	assert.Empty(t, r.AllKinds())
}

func TestRollbackOnEmptyStackFails(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)
	err := r.Rollback()
	require.Error(t, err)
	var noTxn *cerrs.NoActiveTransaction
	require.ErrorAs(t, err, &noTxn)
}

func TestAddManyLevelsInitsConcurrentlyAndOrders(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)

	var mu sync.Mutex
	var order []string
	record := func(kind string) func(facet.InitArgs) error {
		return func(facet.InitArgs) error {
			mu.Lock()
			order = append(order, kind)
			mu.Unlock()
			return nil
		}
	}

	a := newFacet(t, "a", facet.Options{})
	b := newFacet(t, "b", facet.Options{})
	c := newFacet(t, "c", facet.Options{})
	_, _ = a.OnInit(record("a"))
	_, _ = b.OnInit(record("b"))
	_, _ = c.OnInit(record("c"))

	levels := [][]string{{"a"}, {"b"}, {"c"}}
	byKind := map[string][]*facet.Facet{"a": {a}, "b": {b}, "c": {c}}

	err := r.AddMany(levels, byKind, registry.AddOptions{Init: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)

	idxA, ok := a.OrderIndex()
	require.True(t, ok)
	idxB, _ := b.OrderIndex()
	idxC, _ := c.OrderIndex()
	assert.True(t, idxA < idxB && idxB < idxC)
}

func TestAddManyRollsBackOnInitFailure(t *testing.T) {
	t.Parallel()

	r := registry.New(nil)
	a := newFacet(t, "a", facet.Options{})
	b := newFacet(t, "b", facet.Options{})
	boom := errors.New("boom")
	_, _ = b.OnInit(func(facet.InitArgs) error { return boom })

	levels := [][]string{{"a"}, {"b"}}
	byKind := map[string][]*facet.Facet{"a": {a}, "b": {b}}

	err := r.AddMany(levels, byKind, registry.AddOptions{Init: true})
	require.Error(t, err)
	assert.Empty(t, r.AllKinds())
}
