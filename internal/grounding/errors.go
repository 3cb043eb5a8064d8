package grounding

import "errors"

var (
	// ErrInputInvalid is returned for malformed requests (missing question,
	// empty page list). Rejected before any model call, never retried.
	ErrInputInvalid = errors.New("invalid grounding input")

	// ErrModelCallFailed is a transport-level failure calling the model.
	ErrModelCallFailed = errors.New("model call failed")

	// ErrUnparsableResponse means no structured object could be recovered
	// from the raw model output, even after syntax repair.
	ErrUnparsableResponse = errors.New("unparsable model response")

	// ErrShapeInvalid means the parsed object is missing required fields.
	ErrShapeInvalid = errors.New("response shape invalid")

	// ErrGroundingUnavailable means the strict retry itself failed. It is the
	// only question-level failure surfaced to the user.
	ErrGroundingUnavailable = errors.New("grounding unavailable")
)
