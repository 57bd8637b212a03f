package lookup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// Result is the single record a lookup run prints to stdout.
type Result struct {
	Success             bool    `json:"success"`
	MobileNumber        string  `json:"mobile_number"`
	Error               string  `json:"error"`
	ResponseTimeSeconds float64 `json:"response_time_seconds"`
}

// Error kinds, prefixed to the message in Result.Error.
const (
	KindException = "Exception"
	KindTimeout   = "TimeoutException"
	KindError     = "Error"
	KindPanic     = "panic"
)

var (
	// ErrNotFound is returned when no locator candidate matched.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout is returned by Poll when the condition never held.
	ErrTimeout = errors.New("timed out")
	// ErrMobileEmpty reports a run that reached the result page but never
	// saw the mobile field populated.
	ErrMobileEmpty = errors.New("Mobile number field is empty")
)

// StepError is a workflow failure with the kind it is reported under.
type StepError struct {
	Kind string
	Msg  string
	Err  error
}

func (e *StepError) Error() string { return e.Msg }
func (e *StepError) Unwrap() error { return e.Err }

func exception(msg string) error {
	return &StepError{Kind: KindException, Msg: msg}
}

// NewResult builds the record from the outcome of a run.
func NewResult(mobile string, err error, elapsed time.Duration) Result {
	r := Result{ResponseTimeSeconds: roundSeconds(elapsed)}
	switch {
	case err != nil:
		r.Error = describe(err)
	case mobile == "":
		r.Error = ErrMobileEmpty.Error()
	default:
		r.Success = true
		r.MobileNumber = mobile
	}
	return r
}

// describe renders err as "<Kind>: <message>".
func describe(err error) string {
	if errors.Is(err, ErrMobileEmpty) {
		return ErrMobileEmpty.Error()
	}
	var se *StepError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s: %s", se.Kind, se.Msg)
	}
	if errors.Is(err, ErrTimeout) {
		return fmt.Sprintf("%s: %s", KindTimeout, err.Error())
	}
	return fmt.Sprintf("%s: %s", KindError, err.Error())
}

func roundSeconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return math.Round(d.Seconds()*100) / 100
}

// Write encodes the record as one JSON line.
func (r Result) Write(w io.Writer) error {
	return json.NewEncoder(w).Encode(r)
}
