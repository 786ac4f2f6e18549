// Package fqerr defines the typed error kinds raised by every stage of the
// FlowQuery pipeline, from tokenizing through pipeline execution.
//
// Each kind is a package-level value built with errors.NewKind, following
// the pattern the engine's auth package uses for ErrNotAuthorized and
// ErrNoPermission: callers build concrete errors with Kind.New(args...) and
// attach a cause with Kind.Wrap(err), and call sites can test the kind with
// errors.Is against the Kind's sentinel rather than matching on message text.
package fqerr

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrSyntax covers malformed query text: unexpected tokens, unterminated
	// literals, unbalanced brackets, unknown pattern shapes.
	ErrSyntax = errors.NewKind("syntax error: %s")

	// ErrArity is raised at parse time when a function call's argument count
	// does not match its declared arity.
	ErrArity = errors.NewKind("function %s expects %s, got %d argument(s)")

	// ErrAggregateNesting is raised at parse time when an aggregate function
	// call's ancestry already contains another aggregate function call.
	ErrAggregateNesting = errors.NewKind("aggregate function %s may not be nested inside aggregate function %s")

	// ErrShape is raised for structurally invalid operations: at parse time
	// for a statement that does not end in a terminal operation, and at run
	// time for values of the wrong shape, such as UNWIND of a non-list value.
	ErrShape = errors.NewKind("shape error: %s")

	// ErrUnknownFunction is raised when a CALL or expression names a
	// function absent from the registry.
	ErrUnknownFunction = errors.NewKind("unknown function: %s")

	// ErrUnknownLabel is raised when a MATCH references a node label with no
	// registered virtual definition. OPTIONAL MATCH recovers from this by
	// treating the label as an empty source instead of propagating it.
	ErrUnknownLabel = errors.NewKind("unknown node label: %s")

	// ErrUnknownRelType is raised when a MATCH references a relationship
	// type with no registered virtual definition.
	ErrUnknownRelType = errors.NewKind("unknown relationship type: %s")

	// ErrTypeMismatch is raised when a scalar operator receives operands it
	// cannot reconcile (e.g. adding a list to a boolean).
	ErrTypeMismatch = errors.NewKind("type mismatch: %s")

	// ErrUnionShape is raised at the first row whose column set disagrees
	// with the first branch of a UNION/UNION ALL.
	ErrUnionShape = errors.NewKind("UNION branches must return the same columns: expected %v, got %v")

	// ErrCallWithoutYield is raised when a non-terminal CALL omits YIELD.
	ErrCallWithoutYield = errors.NewKind("CALL without YIELD is only permitted as the terminal operation")

	// ErrProviderIO is raised when an async provider fails; the message
	// carries the provider/URL and the underlying cause.
	ErrProviderIO = errors.NewKind("provider %s failed: %s")

	// ErrSemantic covers runtime conditions spec.md doesn't name a specific
	// kind for: an unbound identifier, an aggregate evaluated outside a
	// grouping context. (An out-of-range list index yields null, not an
	// error.)
	ErrSemantic = errors.NewKind("semantic error: %s")

	// ErrDuplicateVirtual is raised when CREATE VIRTUAL redefines an
	// existing label or relationship type without first deleting it.
	ErrDuplicateVirtual = errors.NewKind("virtual definition already exists: %s")
)
