// Package compose implements a pluggable composition runtime: subsystems
// assemble their capabilities from hooks that build facets, resolve the
// dependency order between them, and bring them up (or back down)
// transactionally.
//
// A Subsystem starts empty. Hooks are registered with Use/UseIf; each
// names a kind, its dependencies, and a factory that produces a Facet
// once built. Build runs a pure verify phase (package plan) that orders
// every hook, resolves contracts, and produces a Plan, then a
// transactional execute phase (also package plan) that installs it into
// the subsystem's Registry, initializing same-level facets concurrently.
// A failed build leaves the subsystem exactly as it was before the call.
//
// Subsystems nest: SetParent/GetParent build a tree, and NameString
// renders a subsystem's position in it. Dispose tears a subsystem (and
// its children) down; Reload clears a built subsystem back to Created
// while keeping its registered hooks, ready for another Build.
package compose
