package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic logs a recovered panic with its stack. Call it deferred at the
// top of background goroutines:
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "token cleanup")
//	    ...
//	}()
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// RecoverPanicWithCallback is RecoverPanic followed by callback, which only
// runs when a panic was recovered
func RecoverPanicWithCallback(logger *Logger, where string, callback func()) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
		if callback != nil {
			callback()
		}
	}
}

func logPanic(logger *Logger, where string, r interface{}) {
	logger.WithFields(map[string]interface{}{
		"panic":   fmt.Sprint(r),
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")
}

// MustRecover converts a recovered value into an error; nil stays nil
//
//	defer func() { err = observability.MustRecover(recover()) }()
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
