package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/ctxkit"
	"github.com/plugforge/compose/facet"
	"github.com/plugforge/compose/hook"
	"github.com/plugforge/compose/plugapi"
)

func noopFactory(kind string) hook.Factory {
	return func(ctxkit.Context, plugapi.API, plugapi.Subsystem) (*facet.Facet, error) {
		return facet.New(kind, facet.Options{})
	}
}

func TestOrderHooksSecondEntryMustOverwrite(t *testing.T) {
	t.Parallel()

	a0, err := hook.New(hook.Options{Kind: "a", Factory: noopFactory("a")})
	require.NoError(t, err)
	a1, err := hook.New(hook.Options{Kind: "a", Factory: noopFactory("a")}) // no Overwrite
	require.NoError(t, err)

	_, err = orderHooks([]*hook.Descriptor{a0, a1})
	require.Error(t, err)
	var bad *cerrs.BadHook
	require.ErrorAs(t, err, &bad)
}

func TestOrderHooksOverrideChainsOK(t *testing.T) {
	t.Parallel()

	a0, err := hook.New(hook.Options{Kind: "a", Factory: noopFactory("a")})
	require.NoError(t, err)
	a1, err := hook.New(hook.Options{Kind: "a", Overwrite: true, Factory: noopFactory("a")})
	require.NoError(t, err)
	a2, err := hook.New(hook.Options{Kind: "a", Overwrite: true, Factory: noopFactory("a")})
	require.NoError(t, err)

	ordered, err := orderHooks([]*hook.Descriptor{a0, a1, a2})
	require.NoError(t, err)
	assert.Equal(t, []*hook.Descriptor{a0, a1, a2}, ordered)
}

func TestOrderHooksCrossKindDependsOnLastOfGroup(t *testing.T) {
	t.Parallel()

	a0, err := hook.New(hook.Options{Kind: "a", Factory: noopFactory("a")})
	require.NoError(t, err)
	a1, err := hook.New(hook.Options{Kind: "a", Overwrite: true, Factory: noopFactory("a")})
	require.NoError(t, err)
	b, err := hook.New(hook.Options{Kind: "b", Required: []string{"a"}, Factory: noopFactory("b")})
	require.NoError(t, err)

	// b listed before the overrides: order must still place b after a1.
	ordered, err := orderHooks([]*hook.Descriptor{b, a0, a1})
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, "b", ordered[2].Kind())
}
