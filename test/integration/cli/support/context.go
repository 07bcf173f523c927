// Package support holds the godog step definitions of the CLI acceptance
// suite.
package support

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Binary is the petalscan executable under test.
	Binary string

	// Command execution state
	LastCommand  string
	LastStdout   string
	LastStderr   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// WorkingDir is a private directory the commands run in; the default
	// data paths (data/templates, data/petalscan.db) land below it.
	WorkingDir string
	EnvVars    []string

	// HTTP state
	Server             *APIServer
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastStreamProgress []int
	LastStreamResult   string
}

// NewTestContext creates a context with a fresh working directory.
func NewTestContext(binary string) (*TestContext, error) {
	dir, err := os.MkdirTemp("", "petalscan-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	return &TestContext{
		Binary:     binary,
		WorkingDir: dir,
		EnvVars: []string{
			"XDG_CONFIG_HOME=" + filepath.Join(dir, ".config"),
			"PETALSCAN_LOG_LEVEL=warn",
		},
	}, nil
}

// Cleanup stops the server and removes the working directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.Server != nil {
		testCtx.Server.Close()
		testCtx.Server = nil
	}
	if err := os.RemoveAll(testCtx.WorkingDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove %s: %w", testCtx.WorkingDir, err))
	}
	return errors.Join(errs...)
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// environ returns the process environment without inherited PETALSCAN_
// settings, plus the scenario's variables.
func (testCtx *TestContext) environ() []string {
	env := make([]string, 0, len(os.Environ())+len(testCtx.EnvVars))
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "PETALSCAN_") {
			env = append(env, kv)
		}
	}
	return append(env, testCtx.EnvVars...)
}

// path resolves a scenario file name inside the working directory.
func (testCtx *TestContext) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.WorkingDir, name)
}

// writeFile stores data under the working directory.
func (testCtx *TestContext) writeFile(name string, data []byte) error {
	p := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}
