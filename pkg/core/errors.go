// Copyright 2020 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"time"

	"github.com/juju/errors"
)

// Fixed messages recorded on cases whose routing metadata cannot be resolved.
const (
	MsgHostNotFound       = "Host URL not found"
	MsgUserNotFound       = "User not found for group"
	MsgCredentialNotFound = "Credential not found for user"
	MsgRunCanceled        = "run canceled"
)

// ReasonPreviouslyFailed marks a connection error that was answered from the failed-keys set.
const ReasonPreviouslyFailed = "previously failed"

// LookupError means an endpoint, principal or credential lookup failed for a case.
type LookupError struct {
	Message string
	Detail  string
}

func (e *LookupError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// ConnectionError means no session could be established for (Host, User).
type ConnectionError struct {
	Host   string
	User   string
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connect to %s as %s: %s", e.Host, e.User, e.Reason)
	}
	return fmt.Sprintf("connect to %s as %s: %s: %v", e.Host, e.User, e.Reason, e.Err)
}

// ExecutionError carries the engine's message verbatim.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

// TimeoutError means the per-case deadline expired while connecting or executing.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("case timed out after %s", e.Timeout)
}

// FatalError aborts the run before any case is executed.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Fatal wraps err as a FatalError, keeping nil as nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err, or its cause, is a FatalError.
func IsFatal(err error) bool {
	_, ok := errors.Cause(err).(*FatalError)
	return ok
}

// IsPreviouslyFailed reports whether err was answered from the pool's failed-keys set.
func IsPreviouslyFailed(err error) bool {
	e, ok := errors.Cause(err).(*ConnectionError)
	return ok && e.Reason == ReasonPreviouslyFailed
}
