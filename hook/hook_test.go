package hook_test

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

func dummyFactory(ctx ctxkit.Context, a plugapi.API, sub plugapi.Subsystem) (*facet.Facet, error) {
	return facet.New("x", facet.Options{})
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts hook.Options
		errAs any
	}{
		{
			name:  "empty kind",
			opts:  hook.Options{Factory: dummyFactory},
			errAs: new(*cerrs.BadHook),
		},
		{
			name:  "nil factory",
			opts:  hook.Options{Kind: "x"},
			errAs: new(*cerrs.BadHook),
		},
		{
			name:  "bad version",
			opts:  hook.Options{Kind: "x", Version: "not-a-version", Factory: dummyFactory},
			errAs: new(*cerrs.InvalidVersion),
		},
		{
			name:  "empty required entry",
			opts:  hook.Options{Kind: "x", Required: []string{""}, Factory: dummyFactory},
			errAs: new(*cerrs.BadHook),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := hook.New(tt.opts)
			require.Error(t, err)
			require.ErrorAs(t, err, tt.errAs)
		})
	}
}

func TestNewDefaultsVersion(t *testing.T) {
	t.Parallel()

	d, err := hook.New(hook.Options{Kind: "x", Factory: dummyFactory})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", d.Version())
}

func TestBuildInvokesFactory(t *testing.T) {
	t.Parallel()

	d, err := hook.New(hook.Options{Kind: "x", Factory: dummyFactory})
	require.NoError(t, err)

	f, err := d.Build(ctxkit.Context{}, plugapi.API{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "x", f.Kind())
}
