package plan_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/contract"
	"github.com/plugforge/compose/ctxkit"
	"github.com/plugforge/compose/facet"
	"github.com/plugforge/compose/hook"
	"github.com/plugforge/compose/plan"
	"github.com/plugforge/compose/plugapi"
	"github.com/plugforge/compose/registry"
)

type stubSubsystem struct{ name string }

func (s stubSubsystem) Name() string             { return s.name }
func (s stubSubsystem) Registry() plugapi.Lookup { return nil }
func (s stubSubsystem) IsRoot() bool             { return true }

func recordingFactory(t *testing.T, order *[]string, mu *sync.Mutex, kind string, required ...string) hook.Factory {
	t.Helper()
	return func(ctx ctxkit.Context, a plugapi.API, sub plugapi.Subsystem) (*facet.Facet, error) {
		f, err := facet.New(kind, facet.Options{Required: required})
		require.NoError(t, err)
		_, err = f.OnInit(func(facet.InitArgs) error {
			mu.Lock()
			*order = append(*order, kind)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		return f, nil
	}
}

func mustHook(t *testing.T, opts hook.Options) *hook.Descriptor {
	t.Helper()
	d, err := hook.New(opts)
	require.NoError(t, err)
	return d
}

func TestVerifyLinearChain(t *testing.T) {
	t.Parallel()

	var order []string
	var mu sync.Mutex
	hooks := []*hook.Descriptor{
		mustHook(t, hook.Options{Kind: "a", Factory: recordingFactory(t, &order, &mu, "a")}),
		mustHook(t, hook.Options{Kind: "b", Required: []string{"a"}, Factory: recordingFactory(t, &order, &mu, "b", "a")}),
		mustHook(t, hook.Options{Kind: "c", Required: []string{"b"}, Factory: recordingFactory(t, &order, &mu, "c", "b")}),
	}

	p := plan.New(nil, nil)
	result, err := p.Verify(stubSubsystem{name: "root"}, hooks, ctxkit.Context{}, ctxkit.Context{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, result.OrderedKinds)

	reg := registry.New(nil)
	require.NoError(t, plan.Execute(reg, result, registry.AddOptions{Init: true}))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestVerifyDiamond(t *testing.T) {
	t.Parallel()

	var order []string
	var mu sync.Mutex
	hooks := []*hook.Descriptor{
		mustHook(t, hook.Options{Kind: "base", Factory: recordingFactory(t, &order, &mu, "base")}),
		mustHook(t, hook.Options{Kind: "left", Required: []string{"base"}, Factory: recordingFactory(t, &order, &mu, "left", "base")}),
		mustHook(t, hook.Options{Kind: "right", Required: []string{"base"}, Factory: recordingFactory(t, &order, &mu, "right", "base")}),
		mustHook(t, hook.Options{Kind: "top", Required: []string{"left", "right"}, Factory: recordingFactory(t, &order, &mu, "top", "left", "right")}),
	}

	p := plan.New(nil, nil)
	result, err := p.Verify(stubSubsystem{name: "root"}, hooks, ctxkit.Context{}, ctxkit.Context{})
	require.NoError(t, err)
	require.Len(t, result.OrderedKinds, 4)
	assert.Equal(t, "base", result.OrderedKinds[0])
	assert.Equal(t, "top", result.OrderedKinds[3])
}

func TestVerifyCycleFails(t *testing.T) {
	t.Parallel()

	var order []string
	var mu sync.Mutex
	hooks := []*hook.Descriptor{
		mustHook(t, hook.Options{Kind: "x", Required: []string{"y"}, Factory: recordingFactory(t, &order, &mu, "x", "y")}),
		mustHook(t, hook.Options{Kind: "y", Required: []string{"x"}, Factory: recordingFactory(t, &order, &mu, "y", "x")}),
	}

	p := plan.New(nil, nil)
	_, err := p.Verify(stubSubsystem{name: "root"}, hooks, ctxkit.Context{}, ctxkit.Context{})
	require.Error(t, err)
	var cyc *cerrs.Cycle
	require.ErrorAs(t, err, &cyc)
	assert.ElementsMatch(t, []string{"x", "y"}, cyc.Kinds)
}

func TestExecuteRollsBackFailingInit(t *testing.T) {
	t.Parallel()

	var order []string
	var mu sync.Mutex
	disposed := 0

	aFactory := func(ctx ctxkit.Context, a plugapi.API, sub plugapi.Subsystem) (*facet.Facet, error) {
		f, err := facet.New("a", facet.Options{})
		require.NoError(t, err)
		_, err = f.OnInit(func(facet.InitArgs) error {
			mu.Lock()
			order = append(order, "a")
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		_, err = f.OnDispose(func(facet.DisposeArgs) error {
			mu.Lock()
			disposed++
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		return f, nil
	}
	bFactory := func(ctx ctxkit.Context, a plugapi.API, sub plugapi.Subsystem) (*facet.Facet, error) {
		f, err := facet.New("b", facet.Options{Required: []string{"a"}})
		require.NoError(t, err)
		_, err = f.OnInit(func(facet.InitArgs) error {
			return errors.New("b init failed")
		})
		require.NoError(t, err)
		return f, nil
	}

	hooks := []*hook.Descriptor{
		mustHook(t, hook.Options{Kind: "a", Factory: aFactory}),
		mustHook(t, hook.Options{Kind: "b", Required: []string{"a"}, Factory: bFactory}),
	}

	p := plan.New(nil, nil)
	result, err := p.Verify(stubSubsystem{name: "root"}, hooks, ctxkit.Context{}, ctxkit.Context{})
	require.NoError(t, err)

	reg := registry.New(nil)
	err = plan.Execute(reg, result, registry.AddOptions{Init: true})
	require.Error(t, err)
	var buildFailed *cerrs.BuildFailed
	require.ErrorAs(t, err, &buildFailed)

	assert.Equal(t, 1, disposed)
	assert.Empty(t, reg.AllKinds())
}

func TestVerifyContractViolation(t *testing.T) {
	t.Parallel()

	dbFactory := func(ctx ctxkit.Context, a plugapi.API, sub plugapi.Subsystem) (*facet.Facet, error) {
		f, err := facet.New("db", facet.Options{Contract: "database"})
		require.NoError(t, err)
		_, err = f.Add(map[string]plugapi.Method{"query": {Func: func() {}}})
		require.NoError(t, err)
		return f, nil
	}

	hooks := []*hook.Descriptor{
		mustHook(t, hook.Options{Kind: "db", Contract: "database", Factory: dbFactory}),
	}

	contracts := contract.New()
	contracts.Register(contract.Contract{
		Name:            "database",
		RequiredMethods: []string{"query", "close"},
	})

	p := plan.New(contracts, nil)
	_, err := p.Verify(stubSubsystem{name: "root"}, hooks, ctxkit.Context{}, ctxkit.Context{})
	require.Error(t, err)

	var violation *cerrs.ContractViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "db", violation.Kind)
	assert.Equal(t, "database", violation.Name)
	assert.Contains(t, violation.Reasons, "missing method: close")
}

func TestOverrideDepth(t *testing.T) {
	t.Parallel()

	base := func(ctx ctxkit.Context, a plugapi.API, sub plugapi.Subsystem) (*facet.Facet, error) {
		return facet.New("a", facet.Options{})
	}
	override := func(ctx ctxkit.Context, a plugapi.API, sub plugapi.Subsystem) (*facet.Facet, error) {
		return facet.New("a", facet.Options{Overwrite: true})
	}

	hooks := []*hook.Descriptor{
		mustHook(t, hook.Options{Kind: "a", Factory: base}),
		mustHook(t, hook.Options{Kind: "a", Overwrite: true, Factory: override}),
	}

	p := plan.New(nil, nil)
	result, err := p.Verify(stubSubsystem{name: "root"}, hooks, ctxkit.Context{}, ctxkit.Context{})
	require.NoError(t, err)

	reg := registry.New(nil)
	require.NoError(t, plan.Execute(reg, result, registry.AddOptions{Init: true, Overwrite: true}))

	assert.True(t, reg.HasMultiple("a"))
	last, ok := reg.Find("a")
	require.True(t, ok)
	assert.Same(t, result.FacetsByKind["a"][1], last)

	first, ok := reg.GetByIndex("a", 0)
	require.True(t, ok)
	assert.Same(t, result.FacetsByKind["a"][0], first)
}
