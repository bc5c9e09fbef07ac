package core

import (
	"fmt"
	"runtime"
	"strings"
)

// Locator captures the call site that declared a rule. Implementations may return an
// opaque marker when no location is available.
type Locator func() string

// UnknownLocation is what NoLocation reports.
const UnknownLocation = "<unknown>"

// CallerLocator returns a Locator reporting the first stack frame whose function does
// not belong to one of the given package paths.
func CallerLocator(internalPackages ...string) Locator {
	return func() string {
		const maxDepth = 64

		pcs := make([]uintptr, maxDepth)
		frames := runtime.CallersFrames(pcs[:runtime.Callers(2, pcs)])

		for {
			frame, more := frames.Next()
			if frame.Function != "" && !belongsTo(frame.Function, internalPackages) {
				return fmt.Sprintf("%s:%d", frame.File, frame.Line)
			}

			if !more {
				return UnknownLocation
			}
		}
	}
}

// NoLocation is a Locator for hosts where stack introspection is unwanted.
func NoLocation() string {
	return UnknownLocation
}

func belongsTo(function string, packages []string) bool {
	if strings.HasPrefix(function, "runtime.") || strings.HasPrefix(function, "reflect.") {
		return true
	}

	for _, pkg := range packages {
		if strings.HasPrefix(function, pkg+".") {
			return true
		}
	}

	return false
}
