package model

import (
	"errors"
	"fmt"
)

// ErrParse marks a model response that did not yield a verdict in the active label set
var ErrParse = errors.New("unparseable verdict")

// ConfigError is a fatal construction-time configuration problem
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Stages that can fail a claim evaluation
const (
	StageAdvocate = "advocate"
	StageMediator = "mediator"
)

// StageError is an unrecoverable infrastructure failure inside one stage.
// It aborts the claim evaluation.
type StageError struct {
	Stage string // advocate, mediator
	Name  string // advocate name, empty for the mediator
	Err   error
}

func (e *StageError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q: %v", e.Stage, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
