// Package calcerr holds the sentinel errors shared by every stoich package.
//
// Functions never return these values bare when context is available; they
// wrap them with github.com/pkg/errors so callers match with errors.Is.
package calcerr

import "errors"

var (
	// ErrUnknownVariable is returned when a name is not declared in the
	// variable registry.
	ErrUnknownVariable = errors.New("stoich: unknown variable")

	// ErrValueAlreadyPresent is returned when a variable that already holds a
	// value is written again.
	ErrValueAlreadyPresent = errors.New("stoich: variable already has a value")

	// ErrValueNotFound is returned by reads and erasures of a variable that
	// holds no value.
	ErrValueNotFound = errors.New("stoich: value not found")

	// ErrIncompatibleUnits signals a dimensional mismatch or an unparsable
	// unit expression.
	ErrIncompatibleUnits = errors.New("stoich: incompatible units")

	// ErrNegativeNotAllowed signals a negative magnitude on a quantity that
	// does not allow negatives.
	ErrNegativeNotAllowed = errors.New("stoich: negative value not allowed")

	// ErrSolutionNotFound is returned when no numeric value can be derived for
	// a target.
	ErrSolutionNotFound = errors.New("stoich: solution not found")

	// ErrAssumptionFailed is returned when a derived target of an assumption
	// bundle cannot be computed.
	ErrAssumptionFailed = errors.New("stoich: assumption failed")

	// ErrUnknownAssumption marks a bundle symbol that is not present in the
	// assumption resource.
	ErrUnknownAssumption = errors.New("stoich: unknown assumption")

	// ErrIncorrectFileFormatting is returned by the resource parsers.
	ErrIncorrectFileFormatting = errors.New("stoich: incorrect file formatting")

	// ErrCannotEquateReaction is returned when the stoichiometric null space is
	// not exactly one-dimensional.
	ErrCannotEquateReaction = errors.New("stoich: cannot equate reaction")

	// ErrInvalidTolerance is returned when a zero-tolerance exponent lies
	// outside (0, 100).
	ErrInvalidTolerance = errors.New("stoich: zero tolerance exponent out of range")

	// ErrInvalidFormula is returned for algebraic or chemical formulas that
	// cannot be parsed.
	ErrInvalidFormula = errors.New("stoich: invalid formula")

	// ErrInvalidQuantity is returned when a quantity string is not of the form
	// "name = value unit".
	ErrInvalidQuantity = errors.New("stoich: invalid quantity string")

	// ErrDivisionByZero is returned by arithmetic on stored values.
	ErrDivisionByZero = errors.New("stoich: division by zero")
)
