package benchmark

import "errors"

// ErrNotConfigured indicates the benchmark lacks a main class or classpath
var ErrNotConfigured = errors.New("benchmark not configured")
