package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Singleton for resolved workspace paths
var (
	resolvedWorkspaceRoot string
	resolvedExamplesDir   string
	resolvedGeneratorsDir string
	pathsOnce             sync.Once
	pathsError            error
)

// RepoMarkerFiles are files that indicate the root of a tilegen workspace.
// go.mod is the marker: a tilegen workspace is any Go module that keeps its
// example maps and trained generators alongside its source.
var RepoMarkerFiles = []string{"go.mod"}

// initPaths resolves workspace paths once at startup.
// It looks for the workspace root by checking:
// 1. Current working directory
// 2. Parent directories (up to 5 levels)
// Returns error if the workspace root cannot be found.
func initPaths() {
	pathsOnce.Do(func() {
		root, err := findWorkspaceRoot()
		if err != nil {
			pathsError = err
			return
		}

		resolvedWorkspaceRoot = root
		resolvedExamplesDir = filepath.Join(root, "examples")
		resolvedGeneratorsDir = filepath.Join(root, "generators")

		Verbose("Resolved workspace root: %s", root)
		Verbose("Examples directory: %s", resolvedExamplesDir)
	})
}

// findWorkspaceRoot searches for the workspace root by looking for marker
// files starting from the current directory and walking up the directory
// tree.
func findWorkspaceRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := cwd
	for i := 0; i < 6; i++ {
		if isWorkspaceRoot(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find tilegen workspace root (looked for %v starting from %s)", RepoMarkerFiles, cwd)
}

// isWorkspaceRoot checks if a directory contains a workspace marker file.
func isWorkspaceRoot(dir string) bool {
	for _, marker := range RepoMarkerFiles {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// WorkspaceRoot returns the absolute path to the resolved workspace root.
func WorkspaceRoot() (string, error) {
	initPaths()
	if pathsError != nil {
		return "", pathsError
	}
	return resolvedWorkspaceRoot, nil
}

// ExamplesDir returns the absolute path to the directory holding example
// maps consumed by `tilegen train`.
func ExamplesDir() (string, error) {
	initPaths()
	if pathsError != nil {
		return "", pathsError
	}
	return resolvedExamplesDir, nil
}

// GeneratorsDir returns the absolute path to the directory holding
// serialized trained generators.
func GeneratorsDir() (string, error) {
	initPaths()
	if pathsError != nil {
		return "", pathsError
	}
	return resolvedGeneratorsDir, nil
}

// GeneratorFilePath returns the absolute path to a named generator's
// serialized file.
func GeneratorFilePath(name string) (string, error) {
	dir, err := GeneratorsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%s.json", name)), nil
}

// MustGeneratorsDir returns the generators directory path or panics if not
// found. Use sparingly - prefer GeneratorsDir() with proper error handling.
func MustGeneratorsDir() string {
	dir, err := GeneratorsDir()
	if err != nil {
		panic(fmt.Sprintf("failed to resolve generators directory: %v", err))
	}
	return dir
}

// ResetPaths resets the cached paths (useful for testing)
func ResetPaths() {
	resolvedWorkspaceRoot = ""
	resolvedExamplesDir = ""
	resolvedGeneratorsDir = ""
	pathsOnce = sync.Once{}
	pathsError = nil
}
