// Package version reports the build version of llm-owl.
package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// Info is the one-line version banner, with the Go toolchain and platform.
func Info() string {
	return fmt.Sprintf("llm-owl version %s (%s %s/%s)", Get(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
