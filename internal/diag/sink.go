// Package diag implements the diagnostic sink described by the container
// engine's error handling design: a place to push recoverable, non-fatal
// findings without routing them through a global or panicking path.
package diag

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Code names a specific diagnosable condition. Fatal conditions are never
// represented by a Code; they're returned directly as errors at the point
// of failure.
type Code int

const (
	HeaderWarning Code = iota
	SectorSizeWarning
	VersionWarning
	MasterSectorWarning
	NormalSectorWarning
	DirNameWarning
	DirTypeWarning
	DirIndexWarning
	DirTimeWarning
	DirSectorWarning
	DirSizeWarning
	TruncatedWarning
	EmulationWarning
)

var codeNames = map[Code]string{
	HeaderWarning:        "HeaderWarning",
	SectorSizeWarning:    "SectorSizeWarning",
	VersionWarning:       "VersionWarning",
	MasterSectorWarning:  "MasterSectorWarning",
	NormalSectorWarning:  "NormalSectorWarning",
	DirNameWarning:       "DirNameWarning",
	DirTypeWarning:       "DirTypeWarning",
	DirIndexWarning:      "DirIndexWarning",
	DirTimeWarning:       "DirTimeWarning",
	DirSectorWarning:     "DirSectorWarning",
	DirSizeWarning:       "DirSizeWarning",
	TruncatedWarning:     "TruncatedWarning",
	EmulationWarning:     "EmulationWarning",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Diagnostic is a single recoverable finding pushed to a Sink.
type Diagnostic struct {
	Code    Code
	Message string
	// Err is the underlying error substituted or ignored by the recovery,
	// if any. May be nil.
	Err error
}

func (d Diagnostic) Error() string {
	if d.Message == "" {
		return d.Code.String()
	}
	return d.Code.String() + ": " + d.Message
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}

// Sink receives recoverable diagnostics from every layer of the engine. It
// is injected by the caller rather than reached through package-level
// state, so two containers opened in the same process never share
// diagnostic history.
type Sink interface {
	// Push records a diagnostic. Implementations must not block and must
	// not alter control flow of the caller; Push never returns an error
	// for the caller to check against the current operation (see
	// EscalatingSink for that behavior).
	Push(d Diagnostic)
}

// CollectingSink is the default Sink: it surfaces all diagnostics and
// escalates none, per the design's default policy. Pushed diagnostics
// accumulate into a *multierror.Error so a caller can inspect everything
// that happened during a Close or Save in one place.
type CollectingSink struct {
	errs *multierror.Error
}

// NewCollectingSink returns an empty CollectingSink.
func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

func (s *CollectingSink) Push(d Diagnostic) {
	s.errs = multierror.Append(s.errs, d)
}

// Warnings returns the accumulated diagnostics as a single error, or nil if
// none were pushed.
func (s *CollectingSink) Warnings() error {
	if s.errs == nil || len(s.errs.Errors) == 0 {
		return nil
	}
	return s.errs
}

// Diagnostics returns the accumulated diagnostics in push order.
func (s *CollectingSink) Diagnostics() []Diagnostic {
	if s.errs == nil {
		return nil
	}
	out := make([]Diagnostic, 0, len(s.errs.Errors))
	for _, e := range s.errs.Errors {
		if d, ok := e.(Diagnostic); ok {
			out = append(out, d)
		}
	}
	return out
}

// EscalatingSink wraps another Sink and turns selected Codes into fatal
// errors. Once a diagnostic with an escalated Code is pushed, Fatal()
// returns the error that should abort the current operation.
type EscalatingSink struct {
	Inner      Sink
	Escalate   map[Code]bool
	fatal      error
}

// NewEscalatingSink wraps inner, promoting every code in codes to fatal.
func NewEscalatingSink(inner Sink, codes ...Code) *EscalatingSink {
	m := make(map[Code]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return &EscalatingSink{Inner: inner, Escalate: m}
}

func (s *EscalatingSink) Push(d Diagnostic) {
	if s.Inner != nil {
		s.Inner.Push(d)
	}
	if s.Escalate[d.Code] && s.fatal == nil {
		s.fatal = d
	}
}

// Fatal returns the first escalated diagnostic as an error, or nil if none
// of the codes pushed so far were escalated.
func (s *EscalatingSink) Fatal() error {
	return s.fatal
}

// NopSink discards every diagnostic. Useful for callers who only care
// about fatal errors.
type NopSink struct{}

func (NopSink) Push(Diagnostic) {}
