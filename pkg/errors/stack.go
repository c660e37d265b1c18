package errors

import (
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 32

type stack []uintptr

// callers captures the stack of the function calling callers.
func callers() stack {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(2, pcs)
	return pcs[:n]
}

// fullStack renders one "function file:line" entry per frame, runtime frames excluded.
func (s stack) fullStack() []string {
	frames := runtime.CallersFrames(s)
	lines := make([]string, 0, len(s))
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			lines = append(lines, fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return lines
}

// reportSite returns the frame identifying where an error was raised, used as the rate limit key.
func (s stack) reportSite() string {
	lines := s.fullStack()
	if len(lines) == 0 {
		return "unknown"
	}
	if len(lines) > 2 {
		return lines[2]
	}
	return lines[len(lines)-1]
}
