package utils

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"cronfetch/pkg/logger"
)

// GoSafe runs the given function in a new goroutine and recovers from any panic.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Panic Recovered] %v", r)
			}
		}()
		fn()
	}()
}

func ToPointer[T any](value T) *T {
	return &value
}

func ShouldContinue(ctx context.Context, log *logger.Logger) bool {
	select {
	case <-ctx.Done():
		pc, _, _, ok := runtime.Caller(1)
		funcName := "unknown"
		if ok {
			fn := runtime.FuncForPC(pc)
			if fn != nil {
				parts := strings.Split(fn.Name(), "/")
				funcName = parts[len(parts)-1]
			}
		}

		log.Warn("Context cancelled",
			logger.StringField("caller", funcName),
		)
		return false
	default:
		return true
	}
}

// BodyForLog returns the body as a string when it fits under max bytes,
// otherwise the placeholder reporting the true size.
func BodyForLog(body []byte, max int64) string {
	if int64(len(body)) > max {
		return fmt.Sprintf("Body too large (%d bytes), will not be logged.", len(body))
	}
	return string(body)
}

// WorkerIdentity identifies this process in execution logs.
func WorkerIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
