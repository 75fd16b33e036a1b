package cli

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/switchboard/pkg/config"
	"mercator-hq/switchboard/pkg/dispatch"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitDispatch  = 2
	ExitConfig    = 3
	ExitCancelled = 130
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *ConfigError
	var valErr config.ValidationError
	if errors.As(err, &cfgErr) || errors.As(err, &valErr) {
		return ExitConfig
	}

	if dispatch.IsCancelled(err) || errors.Is(err, context.Canceled) {
		return ExitCancelled
	}
	var de *dispatch.Error
	if errors.As(err, &de) {
		return ExitDispatch
	}

	return ExitFailure
}
