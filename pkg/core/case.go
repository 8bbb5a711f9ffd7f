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
	"strings"
	"time"
)

// Phase decides where a case is scheduled.
type Phase string

// Phases, in execution order.
const (
	PhaseSetup   Phase = "Setup"
	PhaseTest    Phase = "Test"
	PhaseCleanUp Phase = "CleanUp"
)

// ParsePhase accepts the spellings used in suite files, e.g. "setup", "Clean-up", "cleanup".
func ParsePhase(s string) (Phase, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	switch norm {
	case "setup":
		return PhaseSetup, true
	case "test", "":
		return PhaseTest, true
	case "cleanup":
		return PhaseCleanUp, true
	}
	return "", false
}

// Status is the engine-reported outcome of a statement.
type Status string

// Statuses
const (
	StatusCompleted Status = "COMPLETED"
	StatusError     Status = "ERROR"
)

// ParseStatus parses an expected status column.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COMPLETED":
		return StatusCompleted, true
	case "ERROR":
		return StatusError, true
	}
	return "", false
}

// Result is the verdict of a case. The zero value means the case has not run yet.
type Result string

// Results
const (
	ResultPass Result = "PASS"
	ResultFail Result = "FAIL"
)

// TestCase is one row of the suite.
type TestCase struct {
	ID               string `json:"id" yaml:"id"`
	Team             string `json:"team" yaml:"team"`
	InstanceType     string `json:"instance_type" yaml:"instance_type"`
	Env              string `json:"env" yaml:"env"`
	UseCase          string `json:"use_case,omitempty" yaml:"use_case"`
	QueryText        string `json:"query" yaml:"query"`
	Phase            Phase  `json:"phase" yaml:"phase"`
	Group            string `json:"group" yaml:"group"`
	ExpectedStatus   Status `json:"expected_status" yaml:"expected_status"`
	ExpectedResponse string `json:"expected_response,omitempty" yaml:"expected_response"`

	// Filled in by the engine, guarded by the recorder lock.
	ResolvedQueryText string        `json:"resolved_query,omitempty" yaml:"-"`
	ActualStatus      Status        `json:"actual_status,omitempty" yaml:"-"`
	ActualResponse    string        `json:"actual_response,omitempty" yaml:"-"`
	Result            Result        `json:"result,omitempty" yaml:"-"`
	ErrorMessage      string        `json:"error_message,omitempty" yaml:"-"`
	StartedAt         time.Time     `json:"started_at,omitempty" yaml:"-"`
	Duration          time.Duration `json:"duration,omitempty" yaml:"-"`
}

// Executed reports whether the case already has an actual status.
func (c *TestCase) Executed() bool {
	return c.ActualStatus != ""
}

// Clone returns a copy that is safe to read without the recorder lock.
func (c *TestCase) Clone() *TestCase {
	cp := *c
	return &cp
}

// Outcome is what the case runner observed for one statement.
type Outcome struct {
	Status       Status
	Response     string
	ErrorMessage string
	// Aborted is set when the statement was cut off by the case deadline or
	// by run cancellation. The engine gave no verdict on it.
	Aborted bool
}

// RunSummary aggregates counts over the case table. It is always derived, never stored.
type RunSummary struct {
	Total    int `json:"total"`
	Executed int `json:"executed"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
}

// Unexecuted returns the number of cases without an actual status.
func (s RunSummary) Unexecuted() int {
	return s.Total - s.Executed
}

// Summarize derives a RunSummary from cases.
func Summarize(cases []*TestCase) RunSummary {
	s := RunSummary{Total: len(cases)}
	for _, c := range cases {
		if c.Executed() {
			s.Executed++
		}
		switch c.Result {
		case ResultPass:
			s.Passed++
		case ResultFail:
			s.Failed++
		}
	}
	return s
}

// RunResult is the final product of a run, handed to persistence.
type RunResult struct {
	RunID      string      `json:"run_id"`
	Env        string      `json:"env"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Cases      []*TestCase `json:"cases"`
	Summary    RunSummary  `json:"summary"`
}
