package pregnancy

import "time"

type Stage string

const (
	StageNotStarted Stage = "not_started"
	StageEarly      Stage = "early"
	StageMiddle     Stage = "middle"
	StageLate       Stage = "late"
)

// StageFor buckets a gestational week into trimesters.
func StageFor(week int) Stage {
	switch {
	case week <= 0:
		return StageNotStarted
	case week <= 13:
		return StageEarly
	case week <= 27:
		return StageMiddle
	default:
		return StageLate
	}
}

// Label is the human readable name used in prompts.
func (s Stage) Label() string {
	switch s {
	case StageEarly:
		return "first trimester"
	case StageMiddle:
		return "second trimester"
	case StageLate:
		return "third trimester"
	default:
		return "not started"
	}
}

// Record is the stored pregnancy anchor for a user.
type Record struct {
	UserID  string
	LMP     *time.Time
	DueDate *time.Time
}

// Context is the optional pregnancy information fed to a health assessment.
type Context struct {
	CurrentWeek int   `json:"current_week"`
	Stage       Stage `json:"stage"`
}

// ContextFor returns nil when there is no record to anchor on.
func ContextFor(record *Record, asOf time.Time) *Context {
	if record == nil || (!isSet(record.LMP) && !isSet(record.DueDate)) {
		return nil
	}
	progress := Compute(record.LMP, record.DueDate, asOf)
	return &Context{
		CurrentWeek: progress.Week,
		Stage:       StageFor(progress.Week),
	}
}
