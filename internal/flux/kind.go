// Package flux implements the regression model family used to estimate a
// gas flux from one cycle's calculation window: ordinary linear, degree-2
// polynomial, Huber robust linear and exponential fits, their shared
// statistics, and the slope-to-flux conversion through chamber geometry and
// the ideal gas law.
package flux

import "fmt"

// ModelKind enumerates the regression forms. The declaration order is the
// documented tie-break for AIC model selection: when two kinds produce the
// same AIC the earlier one wins.
type ModelKind int

const (
	Linear ModelKind = iota
	Poly
	RobLin
	Exponential
)

// Kinds returns all model kinds in selection order.
func Kinds() []ModelKind {
	return []ModelKind{Linear, Poly, RobLin, Exponential}
}

func (k ModelKind) String() string {
	switch k {
	case Linear:
		return "linear"
	case Poly:
		return "poly"
	case RobLin:
		return "roblin"
	case Exponential:
		return "exponential"
	default:
		return fmt.Sprintf("ModelKind(%d)", int(k))
	}
}

// Label returns the human-readable name used in reports.
func (k ModelKind) Label() string {
	switch k {
	case Linear:
		return "Linear"
	case Poly:
		return "Polynomial"
	case RobLin:
		return "Robust linear"
	case Exponential:
		return "Exponential"
	default:
		return k.String()
	}
}

// ParseModelKind parses the short name used in persisted rows.
func ParseModelKind(s string) (ModelKind, error) {
	switch s {
	case "linear", "lin":
		return Linear, nil
	case "poly":
		return Poly, nil
	case "roblin":
		return RobLin, nil
	case "exponential", "exp":
		return Exponential, nil
	}
	return 0, fmt.Errorf("invalid model kind: %q", s)
}
