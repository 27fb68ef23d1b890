// Package outcome defines the tagged result type every phase of the
// pipeline returns, per the Design Note "Decision records, not
// exceptions": Ok, SoftFail (continue, mark the folder errored at the
// end), HardFail (stop the pipeline for this folder immediately), or
// Cancelled. Panics are reserved for programmer errors — an illegal
// state transition or a broken invariant predicate — never for external
// conditions like a missing tool or a corrupt archive.
//
// Grounded on the teacher's internal/engine.DeletionResult/FileError
// pair (a structured result carrying counts and a list of named
// failures, rather than a single bare error), generalized from "one
// result struct for a whole deletion run" to "one small tagged outcome
// per phase call", matching spec §4.2 and §9's outcome-typed phases.
package outcome

// Status is the closed set of outcomes a phase may report.
type Status int

const (
	StatusOk Status = iota
	StatusSoftFail
	StatusHardFail
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusSoftFail:
		return "SoftFail"
	case StatusHardFail:
		return "HardFail"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Outcome is the value every phase function returns instead of a bare
// error. Reason is a short machine-oriented explanation; Err, if
// non-nil, wraps the underlying cause (a subprocess failure, an I/O
// error) for logging.
type Outcome struct {
	Status Status
	Reason string
	Err    error
}

func Ok() Outcome { return Outcome{Status: StatusOk} }

func SoftFail(reason string, err error) Outcome {
	return Outcome{Status: StatusSoftFail, Reason: reason, Err: err}
}

func HardFail(reason string, err error) Outcome {
	return Outcome{Status: StatusHardFail, Reason: reason, Err: err}
}

func Cancelled() Outcome {
	return Outcome{Status: StatusCancelled, Reason: "cancelled"}
}

func (o Outcome) IsOk() bool        { return o.Status == StatusOk }
func (o Outcome) IsHardFail() bool  { return o.Status == StatusHardFail }
func (o Outcome) IsCancelled() bool { return o.Status == StatusCancelled }
