package compose

import "github.com/plugforge/compose/cerrs"

// The error taxonomy a caller programs against (spec §6) lives in package
// cerrs, shared by every package in this module so none of them has to
// import the root package to report one. These aliases let a caller that
// only imports "compose" still declare `var cyc *compose.CycleError` and
// call errors.As(err, &cyc) without a second import, matching spec §6's
// "...Error" naming.
type (
	DuplicateKindError       = cerrs.DuplicateKind
	MissingDependencyError   = cerrs.MissingDependency
	CycleError               = cerrs.Cycle
	UnknownContractError     = cerrs.UnknownContract
	ContractViolationError   = cerrs.ContractViolation
	AlreadyInitializedError  = cerrs.AlreadyInitialized
	AlreadyBuiltError        = cerrs.AlreadyBuilt
	NoActiveTransactionError = cerrs.NoActiveTransaction
	AttachConflictError      = cerrs.AttachConflict
	BadHookError             = cerrs.BadHook
	BadFacetError            = cerrs.BadFacet
	InvalidVersionError      = cerrs.InvalidVersion
	BuildFailedError         = cerrs.BuildFailed
	DuplicateError           = cerrs.Duplicate
	NotAHookError            = cerrs.NotAHook
)
