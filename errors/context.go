package errors

import "errors"

// WithContext returns a copy of err with key=value merged into its
// context, converting a non-PlatformError to one with CodeUnknown first.
// Returns nil if err is nil.
//
//	err = errors.WithContext(err, "mirror", mirrorPath)
//	err = errors.WithContext(err, "rev", rev)
func WithContext(err error, key string, value interface{}) PlatformError {
	if err == nil {
		return nil
	}

	platformErr := asPlatformError(err)

	newContext := make(map[string]interface{})
	if existing := platformErr.Context(); existing != nil {
		for k, v := range existing {
			newContext[k] = v
		}
	}
	newContext[key] = value

	return &platformError{
		code:           platformErr.Code(),
		classification: platformErr.Classification(),
		message:        platformErr.Message(),
		context:        newContext,
		cause:          platformErr.Unwrap(),
	}
}

// WithContextMap merges ctx into err's context in one call; keys in ctx
// override any existing field with the same name.
func WithContextMap(err error, ctx map[string]interface{}) PlatformError {
	if err == nil {
		return nil
	}

	platformErr := asPlatformError(err)

	newContext := make(map[string]interface{})
	if existing := platformErr.Context(); existing != nil {
		for k, v := range existing {
			newContext[k] = v
		}
	}
	for k, v := range ctx {
		newContext[k] = v
	}

	return &platformError{
		code:           platformErr.Code(),
		classification: platformErr.Classification(),
		message:        platformErr.Message(),
		context:        newContext,
		cause:          platformErr.Unwrap(),
	}
}

// WithClassification overrides err's classification, useful when a code
// that's normally permanent is known to be transient in one call site.
func WithClassification(err error, classification ErrorClassification) PlatformError {
	if err == nil {
		return nil
	}

	platformErr := asPlatformError(err)

	var newContext map[string]interface{}
	if existing := platformErr.Context(); existing != nil {
		newContext = make(map[string]interface{}, len(existing))
		for k, v := range existing {
			newContext[k] = v
		}
	}

	return &platformError{
		code:           platformErr.Code(),
		classification: classification,
		message:        platformErr.Message(),
		context:        newContext,
		cause:          platformErr.Unwrap(),
	}
}

// asPlatformError adapts any error into a PlatformError, defaulting to
// CodeUnknown/ClassificationPermanent if it isn't already one.
func asPlatformError(err error) PlatformError {
	var platformErr PlatformError
	if errors.As(err, &platformErr) {
		return platformErr
	}
	return &platformError{
		code:           CodeUnknown,
		classification: ClassificationPermanent,
		message:        err.Error(),
		cause:          err,
	}
}
