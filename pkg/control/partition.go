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
	"github.com/pingcap/sqlaccept/pkg/core"
)

// TeamCases is the ordered Test-phase slice owned by one worker.
type TeamCases struct {
	Team  string
	Cases []*core.TestCase
}

// Plan is the disjoint partition of a run's cases.
type Plan struct {
	Setup   []*core.TestCase
	Teams   []TeamCases
	CleanUp []*core.TestCase
}

// Cases returns every case of the plan in suite order.
func (p *Plan) Cases(order []*core.TestCase) []*core.TestCase {
	in := make(map[*core.TestCase]struct{}, len(order))
	for _, c := range p.Setup {
		in[c] = struct{}{}
	}
	for _, t := range p.Teams {
		for _, c := range t.Cases {
			in[c] = struct{}{}
		}
	}
	for _, c := range p.CleanUp {
		in[c] = struct{}{}
	}
	cases := make([]*core.TestCase, 0, len(in))
	for _, c := range order {
		if _, ok := in[c]; ok {
			cases = append(cases, c)
		}
	}
	return cases
}

// Partition splits the cases of env into setup, per-team test and cleanup
// slices, keeping suite order inside each slice. Teams appear in order of
// first appearance. Test cases of unselected teams are left out.
func Partition(cases []*core.TestCase, cfg *Config) *Plan {
	plan := &Plan{}
	teamIdx := make(map[string]int)
	for _, c := range cases {
		if c.Env != cfg.Env {
			continue
		}
		switch c.Phase {
		case core.PhaseSetup:
			plan.Setup = append(plan.Setup, c)
		case core.PhaseCleanUp:
			plan.CleanUp = append(plan.CleanUp, c)
		default:
			if !cfg.teamSelected(c.Team) {
				continue
			}
			i, ok := teamIdx[c.Team]
			if !ok {
				i = len(plan.Teams)
				teamIdx[c.Team] = i
				plan.Teams = append(plan.Teams, TeamCases{Team: c.Team})
			}
			plan.Teams[i].Cases = append(plan.Teams[i].Cases, c)
		}
	}
	return plan
}
