package jobs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the scheduler's retry decision and for
// the error codes surfaced over HTTP.
type Kind string

const (
	// Admission kinds, returned synchronously from Submit
	KindFeatureDisabled Kind = "FEATURE_DISABLED"
	KindQueueFull       Kind = "QUEUE_FULL"
	KindBudgetExceeded  Kind = "BUDGET_EXCEEDED"
	KindInvalidRequest  Kind = "INVALID_REQUEST"

	// Source acquisition
	KindSourceUnavailable Kind = "SOURCE_UNAVAILABLE" // HTTP 4xx on the audio source
	KindSourceTransient   Kind = "SOURCE_TRANSIENT"   // 5xx, truncated body
	KindSourceTimeout     Kind = "SOURCE_TIMEOUT"

	// Media processing
	KindInvalidClipRange Kind = "INVALID_CLIP_RANGE" // clip window outside the source
	KindMediaTransient   Kind = "MEDIA_TRANSIENT"
	KindMediaFatal       Kind = "MEDIA_FATAL"

	// Captions. These never fail a job; after the caption pipeline's own
	// retries they demote to a warning and the job renders uncaptioned.
	KindCaptionAuth     Kind = "CAPTION_AUTH"
	KindCaptionTimeout  Kind = "CAPTION_TIMEOUT"
	KindCaptionProvider Kind = "CAPTION_PROVIDER"

	// Muxing and validation
	KindMuxFailed     Kind = "MUX_FAILED"
	KindOutputInvalid Kind = "OUTPUT_INVALID"

	// Overall per-job wall clock exceeded
	KindTimeout Kind = "TIMEOUT"

	// Anything the worker could not classify
	KindInternal Kind = "INTERNAL"
)

// Retriable reports whether the scheduler should requeue a job that
// failed with this kind. The non-retriable set is explicit; unknown
// failures retry because every stage is content-derived and cheap to
// redo.
func (k Kind) Retriable() bool {
	switch k {
	case KindFeatureDisabled, KindQueueFull, KindBudgetExceeded, KindInvalidRequest,
		KindSourceUnavailable, KindInvalidClipRange, KindMediaFatal,
		KindCaptionAuth, KindTimeout:
		return false
	}
	return true
}

// Error is a failure tagged with its Kind. It wraps the underlying
// cause so callers can still errors.Is/As through it.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a tagged error with a formatted message
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and context message
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain, or KindInternal when
// the error carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retriable reports whether the scheduler may requeue after err
func Retriable(err error) bool {
	return KindOf(err).Retriable()
}
