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

package control

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AllTeams selects every team of the suite.
const AllTeams = "all"

// Config is the configuration for the controller.
type Config struct {
	// RunID identifies the run in reports and history, generated when empty.
	RunID string
	// Env restricts the suite and every endpoint/principal lookup.
	Env string
	// Teams restricts the Test phase. Empty or "all" selects every team.
	Teams []string
	// CaseTimeout bounds connecting and executing one case. Zero disables it.
	CaseTimeout time.Duration
	// ReportInterval is how often the progress summary is emitted.
	ReportInterval time.Duration
	// History file, one JSON line per finished case.
	History string
}

func (c *Config) adjust() {
	if c.RunID == "" {
		c.RunID = uuid.New().String()
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = 10 * time.Second
	}
}

func (c *Config) allTeams() bool {
	if len(c.Teams) == 0 {
		return true
	}
	for _, t := range c.Teams {
		if strings.EqualFold(strings.TrimSpace(t), AllTeams) {
			return true
		}
	}
	return false
}

func (c *Config) teamSelected(team string) bool {
	if c.allTeams() {
		return true
	}
	for _, t := range c.Teams {
		if strings.TrimSpace(t) == team {
			return true
		}
	}
	return false
}

// State is the scheduler's lifecycle position.
type State int

// States, in order.
const (
	StateIdle State = iota
	StateRunningSetup
	StateRunningTests
	StateRunningCleanup
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunningSetup:
		return "RunningSetup"
	case StateRunningTests:
		return "RunningTests"
	case StateRunningCleanup:
		return "RunningCleanup"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}
