// Package graderr defines the grading core's error taxonomy. Every
// sentinel below is wrapped with call-site detail via fmt.Errorf("...:
// %w", ...), mirroring pipeline.ErrStageAlreadyRegistered and
// defra.GQLError in the teacher corpus.
package graderr

import "errors"

var (
	// ErrInvalidImage is returned when an uploaded blob cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")

	// ErrTooLarge is returned when a decoded image's long side exceeds
	// the preprocessor's hard ceiling (a fixed multiple of the configured
	// cap); images between the cap and that ceiling are downscaled instead.
	ErrTooLarge = errors.New("image too large")

	// ErrVLMParseFailure is returned when the VLM reply cannot be parsed
	// as JSON after the single retry.
	ErrVLMParseFailure = errors.New("VLM reply could not be parsed")

	// ErrVLMTimeout is returned when the VLM call exceeds its deadline.
	// Unlike ErrOCRTimeout, this is not recoverable.
	ErrVLMTimeout = errors.New("VLM call timed out")

	// ErrVLMFailure is returned for any other VLM transport/HTTP failure
	// surfaced after the retry budget is exhausted.
	ErrVLMFailure = errors.New("VLM call failed")

	// ErrOCRFailure is recoverable: the fusion matcher degrades to
	// text-only and sequential fallback when this occurs.
	ErrOCRFailure = errors.New("OCR call failed")

	// ErrOCRTimeout is recoverable, same handling as ErrOCRFailure.
	ErrOCRTimeout = errors.New("OCR call timed out")

	// ErrDelegatePersistFailure means annotated/original bytes could not
	// be written through the persistence delegate. The grading result is
	// still returned, with the corresponding URL entry set to nil.
	ErrDelegatePersistFailure = errors.New("persistence delegate failed")
)

// Fatal reports whether err should abort the grading request entirely
// (spec.md §7: "Errors that would produce an inconsistent or empty item
// list are surfaced").
func Fatal(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidImage),
		errors.Is(err, ErrTooLarge),
		errors.Is(err, ErrVLMParseFailure),
		errors.Is(err, ErrVLMTimeout),
		errors.Is(err, ErrVLMFailure):
		return true
	default:
		return false
	}
}

// Recoverable reports whether err can be locally absorbed, leaving the
// result well-defined but degraded (missing UUID, missing OCR).
func Recoverable(err error) bool {
	switch {
	case errors.Is(err, ErrOCRFailure),
		errors.Is(err, ErrOCRTimeout),
		errors.Is(err, ErrDelegatePersistFailure):
		return true
	default:
		return false
	}
}
