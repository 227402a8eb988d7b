// Package cerrs defines the error taxonomy exposed at the composition
// engine's boundary (spec §6, §7). Each type carries the structured fields
// a caller needs to react programmatically (a kind, a dependency name, a
// cycle's residual kinds, ...) instead of forcing callers to parse messages.
//
// The package sits below every other package in this module -- facet, hook,
// registry, contract, plan, and the root package all return these types --
// so it must not import any of them.
package cerrs

import (
	"fmt"
	"strings"
)

// DuplicateKind reports that a kind was added to a registry, or ordered
// among a set of hooks, when an existing entry for that kind did not permit
// the addition (neither side set overwrite).
type DuplicateKind struct {
	Kind string
}

func (e *DuplicateKind) Error() string {
	return fmt.Sprintf("duplicate kind %q: an entry already exists and neither side permits overwrite", e.Kind)
}

// MissingDependency reports that a hook or facet of kind Kind required a
// dependency Dependency that no hook or facet in the plan produces.
type MissingDependency struct {
	Kind       string
	Dependency string
}

func (e *MissingDependency) Error() string {
	return fmt.Sprintf("%q requires %q, which is not provided by any hook", e.Kind, e.Dependency)
}

// Cycle reports that the dependency graph could not be topologically
// sorted. Kinds lists every kind left with a nonzero indegree after Kahn's
// algorithm terminates -- the kinds genuinely involved in (or depending on
// the result of) the cycle, not just the kinds on the cycle itself.
type Cycle struct {
	Kinds []string
}

func (e *Cycle) Error() string {
	return fmt.Sprintf("dependency cycle among: %s", strings.Join(e.Kinds, ", "))
}

// UnknownContract reports that a facet named a contract that is not
// registered in the contract registry consulted during validation.
type UnknownContract struct {
	Name string
}

func (e *UnknownContract) Error() string {
	return fmt.Sprintf("unknown contract %q", e.Name)
}

// ContractViolation reports that a facet's method bag failed to satisfy its
// declared contract. Reasons lists every individual failure (missing
// methods, missing properties, a failed custom predicate), not just the
// first.
type ContractViolation struct {
	Kind    string
	Name    string
	Reasons []string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("facet %q violates contract %q: %s", e.Kind, e.Name, strings.Join(e.Reasons, "; "))
}

// AlreadyInitialized reports a mutation attempted on a Facet after its
// init callback has run and it has frozen (spec §3 invariant I3).
type AlreadyInitialized struct {
	Kind string
}

func (e *AlreadyInitialized) Error() string {
	return fmt.Sprintf("facet %q is already initialized and immutable", e.Kind)
}

// AlreadyBuilt reports a Use call on a Subsystem that has already built and
// not since been reloaded.
type AlreadyBuilt struct {
	Subsystem string
}

func (e *AlreadyBuilt) Error() string {
	return fmt.Sprintf("subsystem %q is already built; reload before use", e.Subsystem)
}

// NoActiveTransaction reports a Commit or Rollback call against an empty
// transaction stack.
type NoActiveTransaction struct{}

func (e *NoActiveTransaction) Error() string {
	return "no active transaction"
}

// AttachConflict reports that attaching a facet's kind identifier to a
// subsystem would silently shadow a different, non-overwritable facet
// instance already attached under that identifier.
type AttachConflict struct {
	Kind string
}

func (e *AttachConflict) Error() string {
	return fmt.Sprintf("kind %q is already attached by a different facet that does not permit overwrite", e.Kind)
}

// BadHook reports a hook descriptor that failed construction-time
// validation (spec §4.2).
type BadHook struct {
	Reason string
}

func (e *BadHook) Error() string {
	return fmt.Sprintf("bad hook: %s", e.Reason)
}

// BadFacet reports a factory return value that is not a usable Facet, or
// whose kind does not match the hook that produced it.
type BadFacet struct {
	Reason string
}

func (e *BadFacet) Error() string {
	return fmt.Sprintf("bad facet: %s", e.Reason)
}

// InvalidVersion reports a version string that failed semantic-version
// parsing.
type InvalidVersion struct {
	Value string
	Cause error
}

func (e *InvalidVersion) Error() string {
	return fmt.Sprintf("invalid version %q: %v", e.Value, e.Cause)
}

func (e *InvalidVersion) Unwrap() error { return e.Cause }

// BuildFailed wraps the error that aborted an executor (build) phase,
// after rollback has already run. Cause is the original error raised by a
// factory, an init callback, or a validation step.
type BuildFailed struct {
	Cause error
}

func (e *BuildFailed) Error() string {
	return fmt.Sprintf("build failed: %v", e.Cause)
}

func (e *BuildFailed) Unwrap() error { return e.Cause }

// Duplicate reports a second attempt to set a single-valued slot that is
// already occupied -- e.g. a Facet's init or dispose callback (spec §4.1
// "fail with Duplicate if the callback slot is already set").
type Duplicate struct {
	What string
}

func (e *Duplicate) Error() string {
	return fmt.Sprintf("%s is already set", e.What)
}

// NotAHook reports that Subsystem.Use was given a value without hook
// metadata (spec §4.10).
type NotAHook struct{}

func (e *NotAHook) Error() string {
	return "value does not carry hook metadata"
}
