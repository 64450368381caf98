package file

import (
	"time"

	"github.com/opd-ai/blefile/codec"
	"github.com/sirupsen/logrus"
)

// Default protocol timing and framing values.
const (
	DefaultStartTimeout    = 5 * time.Second
	DefaultFinalizeTimeout = 240 * time.Second
	DefaultRenameTimeout   = 3 * time.Second
	DefaultPaceInterval    = 2 * time.Millisecond
	DefaultFinalizeRetries = 1

	// DefaultMarker is the fixed 2-byte field carried by start and rename.
	DefaultMarker = "5C55"

	// FinalizeTrailer is the minimum payload length of finalize and rename frames.
	FinalizeTrailer = 8
)

// Options configures upload sessions.
type Options struct {
	Planner PlannerConfig

	// Marker is the 2-byte hex field sent before the file name.
	Marker string
	// NameLength bounds the sanitized ASCII file name.
	NameLength int

	StartTimeout    time.Duration
	FinalizeTimeout time.Duration
	RenameTimeout   time.Duration

	// PaceInterval spaces consecutive chunk writes. Zero disables pacing.
	PaceInterval time.Duration

	// FinalizeRetries bounds replay rounds after a failed finalize.
	FinalizeRetries int
	// StrictFinalize fails the upload when finalize still reports failure after
	// the last replay round. When false the session proceeds to rename anyway.
	StrictFinalize bool

	Progress ProgressSink
	// OnComplete runs once after a successful upload, typically to refresh a
	// file listing.
	OnComplete func()

	Logger       logrus.FieldLogger
	TimeProvider TimeProvider
}

// DefaultOptions returns the protocol defaults.
func DefaultOptions() Options {
	return Options{
		Planner:         DefaultPlannerConfig(),
		Marker:          DefaultMarker,
		NameLength:      codec.DefaultNameLength,
		StartTimeout:    DefaultStartTimeout,
		FinalizeTimeout: DefaultFinalizeTimeout,
		RenameTimeout:   DefaultRenameTimeout,
		PaceInterval:    DefaultPaceInterval,
		FinalizeRetries: DefaultFinalizeRetries,
	}
}

// withDefaults fills unset fields. PaceInterval, FinalizeRetries and
// StrictFinalize keep their zero values, which are meaningful.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Planner == (PlannerConfig{}) {
		o.Planner = def.Planner
	}
	if len(o.Marker) != 4 {
		o.Marker = def.Marker
	}
	if o.NameLength <= 0 {
		o.NameLength = def.NameLength
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = def.StartTimeout
	}
	if o.FinalizeTimeout <= 0 {
		o.FinalizeTimeout = def.FinalizeTimeout
	}
	if o.RenameTimeout <= 0 {
		o.RenameTimeout = def.RenameTimeout
	}
	if o.PaceInterval < 0 {
		o.PaceInterval = 0
	}
	if o.FinalizeRetries < 0 {
		o.FinalizeRetries = 0
	}
	if o.Progress == nil {
		o.Progress = nopProgress{}
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.TimeProvider == nil {
		o.TimeProvider = defaultTimeProvider
	}
	return o
}
