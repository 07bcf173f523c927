package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// splitArgs splits a command line on spaces. Single quotes group words.
func splitArgs(command string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range command {
		switch {
		case r == '\'':
			inQuote = !inQuote
			started = true
		case r == ' ' && !inQuote:
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unbalanced quote in %q", command)
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}

// iRunCommand runs a petalscan command line in the working directory.
func (testCtx *TestContext) iRunCommand(command string) error {
	parts, err := splitArgs(command)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "petalscan" {
		parts[0] = testCtx.Binary
	}
	testCtx.LastCommand = command

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) //nolint:gosec // scenario commands
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = testCtx.environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	testCtx.LastDuration = time.Since(start)
	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err

	testCtx.LastExitCode = 0
	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %v\nstdout: %s\nstderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastStdout, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nstdout: %s", testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastStdout, expected) {
		return fmt.Errorf("output does not contain %q\nActual output: %s", expected, testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing %q", text)
	}
	if !strings.Contains(strings.ToLower(testCtx.LastStderr), strings.ToLower(text)) {
		return fmt.Errorf("error does not contain %q\nActual stderr: %s", text, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	info, err := os.Stat(testCtx.path(name))
	if err != nil {
		return fmt.Errorf("file %s does not exist: %w", name, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty", name)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	data, err := os.ReadFile(testCtx.path(name))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain %q", name, expected)
	}
	return nil
}

// RegisterCommonSteps registers command execution steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, func(name, value string) error {
		testCtx.AddEnvVar(name, value)
		return nil
	})
}
