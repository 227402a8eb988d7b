package compose

import (
	"log/slog"

	"github.com/plugforge/compose/contract"
	"github.com/plugforge/compose/ctxkit"
	"github.com/plugforge/compose/hook"
	"github.com/plugforge/compose/internal/depgraph"
)

// Option configures a new Subsystem. It's the same small functional-option
// shape the teacher uses for Container/Scope construction.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// config collects constructor options before New builds the Subsystem,
// corresponding to spec §6's constructor signature
// `(name, {message_system?, config?, debug?, default_hooks?})`.
type config struct {
	messageSystem any // ignored-passthrough (spec §6); stored only for MessageSystem()
	baseCtx       ctxkit.Context
	defaultHooks  []*hook.Descriptor
	contracts     *contract.Registry
	cache         *depgraph.Cache
	logger        *slog.Logger
}

// WithMessageSystem attaches an arbitrary host-supplied value, passed
// through unexamined (spec §6 "message_system?: ignored-passthrough").
// Nothing in this package inspects it; MessageSystem returns it verbatim.
func WithMessageSystem(v any) Option {
	return optionFunc(func(c *config) { c.messageSystem = v })
}

// WithConfig seeds the subsystem's base context config bag, kind -> value,
// merged with any extra_ctx a later Build call supplies (spec §3 Context
// merge rule).
func WithConfig(cfg map[string]any) Option {
	return optionFunc(func(c *config) { c.baseCtx.Config = cfg })
}

// WithDebug sets the subsystem's base context Debug flag.
func WithDebug(debug bool) Option {
	return optionFunc(func(c *config) { c.baseCtx.Debug = debug })
}

// WithExtra seeds the subsystem's base context Extra map.
func WithExtra(extra map[string]any) Option {
	return optionFunc(func(c *config) { c.baseCtx.Extra = extra })
}

// WithDefaultHooks installs hooks that run before any user-registered hook
// on every build (spec §3 "default_hooks"). They're prepended to the
// user's hooks in the order given, every build.
func WithDefaultHooks(hooks ...*hook.Descriptor) Option {
	return optionFunc(func(c *config) {
		c.defaultHooks = append(c.defaultHooks, hooks...)
	})
}

// WithContracts overrides the contract registry consulted during verify.
// Unset, a Subsystem gets a private, empty registry -- any facet
// declaring a contract then fails UnknownContract, matching spec §4.7's
// "unregistered contract" case rather than silently accepting it.
func WithContracts(contracts *contract.Registry) Option {
	return optionFunc(func(c *config) { c.contracts = contracts })
}

// WithCache supplies the graph-result cache the planner consults (spec
// §4.6). Unset, a Subsystem builds its own Planner with a nil cache
// (always-miss, still correct, just uncached).
func WithCache(cache *depgraph.Cache) Option {
	return optionFunc(func(c *config) { c.cache = cache })
}

// WithLogger sets the diagnostic sink for errors returned by subsystem
// dispose callbacks (see OnDispose). Errors returned by facet dispose
// callbacks are discarded by the registry and never reach it. Unset, the
// Subsystem logs to a handler that discards every record.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *config) { c.logger = logger })
}
