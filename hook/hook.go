// Package hook implements the Hook descriptor (spec §3 "Hook descriptor",
// §4.2): an immutable bundle of metadata plus the factory closure that
// produces a Facet.
package hook

import (
	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/ctxkit"
	"github.com/plugforge/compose/facet"
	"github.com/plugforge/compose/plugapi"
	"github.com/plugforge/compose/version"
)

// Factory builds the Facet a hook describes. It receives the resolved
// context, the per-call API namespace, and the subsystem the hook was
// registered on.
type Factory func(ctx ctxkit.Context, a plugapi.API, sub plugapi.Subsystem) (*facet.Facet, error)

// Options is the construction-time input for a Descriptor, corresponding
// to spec §3's Hook descriptor fields.
type Options struct {
	Kind      string
	Version   string // defaults to version.Default if empty
	Required  []string
	Attach    bool
	Overwrite bool
	Source    string
	Contract  string // empty means "no contract"
	Factory   Factory
}

// Descriptor is an immutable hook: validated metadata plus its factory.
// Construct one with New; there is no exported way to mutate a Descriptor
// after construction; it carries no behavior beyond what New validates.
type Descriptor struct {
	kind        string
	version     string
	required    []string
	attach      bool
	overwrite   bool
	source      string
	contract    string
	hasContract bool
	factory     Factory
}

// New validates opts and returns an immutable Descriptor. It rejects a
// missing/empty Kind, a non-semver Version, a Required containing an empty
// string, and a nil Factory (spec §4.2).
func New(opts Options) (*Descriptor, error) {
	if opts.Kind == "" {
		return nil, &cerrs.BadHook{Reason: "kind must not be empty"}
	}
	if opts.Factory == nil {
		return nil, &cerrs.BadHook{Reason: "factory must not be nil"}
	}

	v, err := version.Normalize(opts.Version)
	if err != nil {
		return nil, err
	}

	required := make([]string, 0, len(opts.Required))
	for _, r := range opts.Required {
		if r == "" {
			return nil, &cerrs.BadHook{Reason: "required must not contain an empty kind"}
		}
		required = append(required, r)
	}

	d := &Descriptor{
		kind:      opts.Kind,
		version:   v,
		required:  required,
		attach:    opts.Attach,
		overwrite: opts.Overwrite,
		source:    opts.Source,
		factory:   opts.Factory,
	}
	if opts.Contract != "" {
		d.contract = opts.Contract
		d.hasContract = true
	}
	return d, nil
}

// Kind returns the kind string shared by this hook and the facet it
// produces.
func (d *Descriptor) Kind() string { return d.kind }

// Version returns the hook's normalized semantic version.
func (d *Descriptor) Version() string { return d.version }

// Required returns the hook's declared dependency kinds, in declaration
// order.
func (d *Descriptor) Required() []string {
	out := make([]string, len(d.required))
	copy(out, d.required)
	return out
}

// Attach reports whether facets this hook produces should be attached to
// their subsystem's identifier namespace.
func (d *Descriptor) Attach() bool { return d.attach }

// Overwrite reports whether this hook permits a later same-kind hook (an
// override) to take precedence.
func (d *Descriptor) Overwrite() bool { return d.overwrite }

// Source returns the origin identifier used for error attribution (spec §7
// "source attribution derived from the offending hook's source field").
func (d *Descriptor) Source() string { return d.source }

// Contract returns the contract name this hook's facets must satisfy, if
// any.
func (d *Descriptor) Contract() (string, bool) { return d.contract, d.hasContract }

// Build invokes the hook's factory. It does not validate the result's
// kind; callers (the planner) do that so the error can be attributed to
// the specific hook.
func (d *Descriptor) Build(ctx ctxkit.Context, a plugapi.API, sub plugapi.Subsystem) (*facet.Facet, error) {
	return d.factory(ctx, a, sub)
}
