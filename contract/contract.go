// Package contract implements the contract validator (spec §4.7): named
// requirement objects a facet's method bag and declared contract name are
// checked against before it is allowed to initialize.
package contract

import (
	"fmt"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/plugapi"
)

// Predicate is a contract's optional custom check. It returns (true, "",
// nil) when the facet satisfies the predicate, or false and a
// human-readable reason otherwise. An error return is treated the same as
// a false result, with "custom predicate error: " plus the error's message
// used as the reason.
type Predicate func(f plugapi.FacetHandle) (ok bool, reason string, err error)

// Contract is a named requirement object (spec §4.7): a set of method
// names a facet's method bag must contain, a set of property names it
// must expose, and an optional custom predicate.
type Contract struct {
	Name               string
	RequiredMethods    []string
	RequiredProperties []string
	CustomPredicate    Predicate
}

// Registry holds named contracts. The zero value is an empty, usable
// registry; spec §9 calls for the process-wide default registry's
// lifecycle to be explicit and for tests to be able to use scoped
// instances instead of global state, so construct one with New rather
// than reaching for a package-level singleton.
type Registry struct {
	byName map[string]Contract
}

// New returns an empty contract Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]Contract)}
}

// Default is the process-wide registry named in spec §6 ("default_registry
// singleton"). Application code is free to ignore it entirely and build
// its own scoped Registry instead.
var Default = New()

// Register adds (or replaces) a contract under its own Name.
func (r *Registry) Register(c Contract) {
	if r.byName == nil {
		r.byName = make(map[string]Contract)
	}
	r.byName[c.Name] = c
}

// Lookup returns the contract registered under name, if any.
func (r *Registry) Lookup(name string) (Contract, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Remove deletes the contract registered under name, if any.
func (r *Registry) Remove(name string) {
	delete(r.byName, name)
}

// hasMethod reports whether f's method bag contains a callable entry
// under name -- present with either Func or a non-nil Get, matching a
// "required method" check rather than a plain property read.
func hasMethod(f plugapi.FacetHandle, name string) bool {
	m, ok := f.Method(name)
	if !ok {
		return false
	}
	return m.Func != nil || m.Get != nil
}

// hasProperty reports whether f's method bag contains any entry at all
// under name, method or accessor.
func hasProperty(f plugapi.FacetHandle, name string) bool {
	_, ok := f.Method(name)
	return ok
}

// Validate checks f against the contract it declares, if any (spec §4.7,
// invariant I4). A facet that declares no contract always passes. It
// fails with UnknownContract if the declared name is not registered, and
// with ContractViolation, listing every individual failure, if any
// required method, required property, or the custom predicate does not
// hold.
func Validate(reg *Registry, f plugapi.FacetHandle) error {
	name, ok := f.Contract()
	if !ok {
		return nil
	}

	c, ok := reg.Lookup(name)
	if !ok {
		return &cerrs.UnknownContract{Name: name}
	}

	var reasons []string
	for _, m := range c.RequiredMethods {
		if !hasMethod(f, m) {
			reasons = append(reasons, fmt.Sprintf("missing method: %s", m))
		}
	}
	for _, p := range c.RequiredProperties {
		if !hasProperty(f, p) {
			reasons = append(reasons, fmt.Sprintf("missing property: %s", p))
		}
	}
	if c.CustomPredicate != nil {
		ok, reason, err := c.CustomPredicate(f)
		switch {
		case err != nil:
			reasons = append(reasons, fmt.Sprintf("custom predicate error: %v", err))
		case !ok:
			if reason == "" {
				reason = "custom predicate returned false"
			}
			reasons = append(reasons, reason)
		}
	}

	if len(reasons) > 0 {
		return &cerrs.ContractViolation{Kind: f.Kind(), Name: name, Reasons: reasons}
	}
	return nil
}
