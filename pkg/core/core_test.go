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
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestTolerantChecker(t *testing.T) {
	cases := []struct {
		name     string
		tc       TestCase
		outcome  Outcome
		expected Result
	}{
		{
			name:     "select without pinned response",
			tc:       TestCase{ExpectedStatus: StatusCompleted},
			outcome:  Outcome{Status: StatusCompleted, Response: "1"},
			expected: ResultPass,
		},
		{
			name:     "expected error received error",
			tc:       TestCase{ExpectedStatus: StatusError},
			outcome:  Outcome{Status: StatusError, ErrorMessage: "table not found"},
			expected: ResultPass,
		},
		{
			name:     "status mismatch",
			tc:       TestCase{ExpectedStatus: StatusError},
			outcome:  Outcome{Status: StatusCompleted},
			expected: ResultFail,
		},
		{
			name:     "response compared after trimming",
			tc:       TestCase{ExpectedStatus: StatusCompleted, ExpectedResponse: "42"},
			outcome:  Outcome{Status: StatusCompleted, Response: " 42\n"},
			expected: ResultPass,
		},
		{
			name:     "response mismatch",
			tc:       TestCase{ExpectedStatus: StatusCompleted, ExpectedResponse: "42"},
			outcome:  Outcome{Status: StatusCompleted, Response: "43"},
			expected: ResultFail,
		},
	}
	for _, c := range cases {
		tc := c.tc
		assert.Equal(t, c.expected, TolerantChecker{}.Check(&tc, c.outcome), c.name)
	}
}

func TestSummarize(t *testing.T) {
	cases := []*TestCase{
		{ActualStatus: StatusCompleted, Result: ResultPass},
		{ActualStatus: StatusError, Result: ResultFail},
		{ActualStatus: StatusError, Result: ResultPass},
		{},
	}
	s := Summarize(cases)
	assert.Equal(t, RunSummary{Total: 4, Executed: 3, Passed: 2, Failed: 1}, s)
	assert.Equal(t, 1, s.Unexecuted())
}

func TestParsePhase(t *testing.T) {
	for in, expected := range map[string]Phase{
		"Setup":    PhaseSetup,
		"setup":    PhaseSetup,
		"Test":     PhaseTest,
		"":         PhaseTest,
		"Clean-up": PhaseCleanUp,
		"cleanup":  PhaseCleanUp,
		"CleanUp":  PhaseCleanUp,
	} {
		p, ok := ParsePhase(in)
		assert.True(t, ok, in)
		assert.Equal(t, expected, p, in)
	}
	_, ok := ParsePhase("teardown")
	assert.False(t, ok)
}

func TestTables(t *testing.T) {
	endpoints := NewEndpoints([]Endpoint{
		{Team: "finance", InstanceType: "adhoc", Env: "dev", Host: "trino-a:8080"},
		{Team: "finance", InstanceType: "adhoc", Env: "dev", Host: "ignored:8080"},
		{Team: "risk", InstanceType: "batch", Env: "dev", Host: " "},
	})
	host, ok := endpoints.Host("finance", "adhoc", "dev")
	assert.True(t, ok)
	assert.Equal(t, "trino-a:8080", host)
	_, ok = endpoints.Host("risk", "batch", "dev")
	assert.False(t, ok)
	_, ok = endpoints.Host("finance", "adhoc", "prod")
	assert.False(t, ok)

	principals := NewPrincipals([]Principal{
		{Env: "dev", Group: "analysts", User: "alice"},
		{Env: "prod", Group: "analysts", User: "bob"},
	})
	p, ok := principals.Principal("dev", "analysts")
	assert.True(t, ok)
	assert.Equal(t, "alice", p.User)
	assert.Len(t, principals.ForEnv("prod"), 1)

	vars := NewVariables([]Variable{{Env: "dev", Name: "account_id", Value: "42"}})
	v, ok := vars.Variable("dev", "account_id")
	assert.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestErrorClassification(t *testing.T) {
	err := errors.Trace(&ConnectionError{Host: "h", User: "u", Reason: ReasonPreviouslyFailed})
	assert.True(t, IsPreviouslyFailed(err))
	assert.False(t, IsFatal(err))
	assert.True(t, IsFatal(errors.Trace(Fatal(errors.New("suite unreadable")))))
	assert.Nil(t, Fatal(nil))
	assert.Equal(t, "Host URL not found", (&LookupError{Message: MsgHostNotFound}).Error())
}
