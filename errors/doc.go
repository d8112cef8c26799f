// Package errors is the structured error type shared by every package in
// this module. It is deliberately small and dependency-free: a
// PlatformError carries a stable ErrorCode, a retry ErrorClassification,
// an optional context map, and a wrapped cause, while remaining fully
// compatible with errors.Is/errors.As/errors.Unwrap.
//
// # Creating errors
//
//	err := errors.New(errors.CodeNotARepo, "path is not a git repository")
//	err := errors.Newf(errors.CodeBadRef, "ref %q not found", ref)
//
// # Wrapping
//
//	if _, err := runner.Run("clone", "--bare", url, mirrorPath); err != nil {
//		return errors.Wrap(err, errors.CodeFetchFailed, "cloning mirror failed")
//	}
//
// # Context
//
//	err = errors.WithContext(err, "mirror", mirrorPath)
//	err = errors.WithContext(err, "rev", rev)
//
// # Retry decisions
//
//	if errors.IsRetryable(err) {
//		// backoff and retry the fetch
//	}
package errors
