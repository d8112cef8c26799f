package errors

import "fmt"

// New builds a PlatformError with code's default classification.
//
//	err := errors.New(errors.CodeNotARepo, "path is not a git repository")
func New(code ErrorCode, message string) PlatformError {
	return &platformError{
		code:           code,
		classification: getDefaultClassification(code),
		message:        message,
	}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(code ErrorCode, format string, args ...interface{}) PlatformError {
	return &platformError{
		code:           code,
		classification: getDefaultClassification(code),
		message:        fmt.Sprintf(format, args...),
	}
}
