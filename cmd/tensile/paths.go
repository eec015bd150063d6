package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envTraceDir = "TENSILE_TRACE_DIR"
	envOutDir   = "TENSILE_OUT_DIR"
)

// resolveInputs returns the trace paths named on the command line, or the
// trace directory from the environment when none are given.
func resolveInputs(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			paths = append(paths, filepath.Clean(a))
		}
	}
	if len(paths) > 0 {
		return paths, nil
	}
	if dir := strings.TrimSpace(os.Getenv(envTraceDir)); dir != "" {
		return []string{filepath.Clean(dir)}, nil
	}
	return nil, fmt.Errorf("no trace files given and %s is not set", envTraceDir)
}

// resolveOutDir picks the generated-code directory: the flag, then the
// environment, then ./out. The directory is created.
func resolveOutDir(outFlag string) (string, error) {
	dir := strings.TrimSpace(outFlag)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv(envOutDir))
	}
	if dir == "" {
		dir = filepath.Join(".", "out")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
