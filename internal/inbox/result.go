package inbox

import "fmt"

// Status is the disposition of one inbound activity.
type Status int

const (
	// Handled means the activity took effect.
	Handled Status = iota
	// Dropped means the activity was ignored, usually because a field the
	// handler needs is missing or unusable.
	Dropped
	// Failed means an unexpected error stopped the handler.
	Failed
)

// String returns the lowercase status name used in logs and metrics.
func (s Status) String() string {
	switch s {
	case Handled:
		return "handled"
	case Dropped:
		return "dropped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result reports what a handler did with an activity. Reason is set for
// Dropped, Err for Failed. Remote senders never see it.
type Result struct {
	Status Status
	Reason string
	Err    error
}

func handled() Result { return Result{Status: Handled} }

func dropped(reason string) Result { return Result{Status: Dropped, Reason: reason} }

func failed(err error) Result { return Result{Status: Failed, Err: err} }

// String renders the status with its reason or error.
func (r Result) String() string {
	switch r.Status {
	case Dropped:
		return "dropped: " + r.Reason
	case Failed:
		return fmt.Sprintf("failed: %v", r.Err)
	}
	return r.Status.String()
}
