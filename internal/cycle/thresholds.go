package cycle

import "fmt"

// Thresholds bundles the four limits the validity check compares against.
type Thresholds struct {
	// PValue is the maximum acceptable slope p-value.
	PValue float64
	// R2 is the minimum acceptable measurement-window R².
	R2 float64
	// RMSE is the maximum acceptable fit RMSE.
	RMSE float64
	// T0 is the maximum acceptable concentration at chamber closure.
	T0 float64
}

// DefaultThresholds returns the limits used when a project defines none.
func DefaultThresholds() Thresholds {
	return Thresholds{PValue: 0.05, R2: 0.98, RMSE: 25, T0: 500}
}

// Mode selects how calculation windows are positioned when a cycle is
// initialized.
type Mode int

const (
	// AfterDeadband places the window right after the deadband at the
	// minimum length.
	AfterDeadband Mode = 1
	// BestPearsonsR searches every admissible window for the strongest
	// linear correlation.
	BestPearsonsR Mode = 2
)

// DefaultMode is the placement used when a project defines none.
const DefaultMode = BestPearsonsR

func (m Mode) String() string {
	switch m {
	case AfterDeadband:
		return "after deadband"
	case BestPearsonsR:
		return "best pearsons r"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps the stored integer form back to a Mode, defaulting to
// BestPearsonsR for unknown values.
func ParseMode(v int) Mode {
	switch v {
	case int(AfterDeadband):
		return AfterDeadband
	case int(BestPearsonsR):
		return BestPearsonsR
	default:
		return DefaultMode
	}
}
