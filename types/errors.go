package types

import "fmt"

// ErrorKind classifies the four error taxonomies the core can surface.
// See spec §7: the averager's singular-integrand clamps are not part
// of this taxonomy — they are defined physical limits, not failures.
type ErrorKind uint8

const (
	// UsageError is raised for an invalid argument or an unsupported
	// combination of settings, e.g. GetData in adaptive mode.
	UsageError ErrorKind = iota
	// ConvergenceError is raised when a root/minimum search exceeds
	// its iteration cap or is handed an invalid bracket.
	ConvergenceError
	// GeometryError is raised when the bounce-point search fails or
	// B_min > B_max on a flux surface.
	GeometryError
	// NumericError is raised on NaN/Inf in an integrand outside the
	// clamping rules.
	NumericError
)

func (k ErrorKind) String() string {
	switch k {
	case UsageError:
		return "usage_error"
	case ConvergenceError:
		return "convergence_error"
	case GeometryError:
		return "geometry_error"
	case NumericError:
		return "numeric_error"
	default:
		return "unknown_error"
	}
}

// Error is the error type returned across the core's public surface.
// It carries the radius index and, when HasP is set, the momentum and
// pitch, so the outer solver can report a useful message without
// reaching back into the core's internals.
type Error struct {
	Kind ErrorKind
	Op   string // component/operation that raised it, e.g. "FluxSurfaceAverager.findBouncePoints"
	Ir   int    // radius index, -1 if not applicable
	P    float64
	Xi0  float64
	HasP bool // P/Xi0 populated
	Err  error
}

func (e *Error) Error() string {
	ctx := fmt.Sprintf("%s: %s (ir=%d", e.Op, e.Kind, e.Ir)
	if e.HasP {
		ctx += fmt.Sprintf(", p=%g, xi0=%g", e.P, e.Xi0)
	}
	ctx += ")"
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", ctx, e.Err)
	}
	return ctx
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error with radius context only (no momentum or
// pitch).
func NewError(kind ErrorKind, op string, ir int, err error) *Error {
	return &Error{Kind: kind, Op: op, Ir: ir, Err: err}
}

// NewPitchError builds an Error carrying momentum/pitch context, used
// by the bounce-point search and Frequency.evaluateAtP.
func NewPitchError(kind ErrorKind, op string, ir int, p, xi0 float64, err error) *Error {
	return &Error{Kind: kind, Op: op, Ir: ir, P: p, Xi0: xi0, HasP: true, Err: err}
}

// KindOf reports the ErrorKind of err if it is (or wraps) an *Error,
// and false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return 0, false
	}
	return e.Kind, true
}
