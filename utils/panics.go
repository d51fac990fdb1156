package utils

import "fmt"

// RecoverWithError converts a panic in the deferring function into an error
// assigned through err. Without a panic the deferred call is a no-op, so a
// regular return value passes through untouched.
func RecoverWithError(err *error) {
	rv := recover()
	if rv == nil {
		return
	}
	*err = fmt.Errorf("got panic: %v", rv)
}
