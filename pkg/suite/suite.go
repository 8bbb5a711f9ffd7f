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

package suite

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/juju/errors"

	"github.com/pingcap/sqlaccept/pkg/core"
)

// Suite is everything a run reads from its case source.
type Suite struct {
	Cases      []*core.TestCase `yaml:"cases"`
	Endpoints  []core.Endpoint  `yaml:"endpoints"`
	Principals []core.Principal `yaml:"principals"`
	Variables  []core.Variable  `yaml:"variables"`
}

// Load reads a suite from a YAML or XLSX file, chosen by extension.
func Load(path string) (*Suite, error) {
	var (
		s   *Suite
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		s, err = LoadYAML(path)
	case ".xlsx":
		s, err = LoadXLSX(path)
	default:
		return nil, errors.NotSupportedf("suite file %s", path)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "load suite %s", path)
	}
	if err := s.normalize(); err != nil {
		return nil, errors.Annotatef(err, "load suite %s", path)
	}
	return s, nil
}

// normalize canonicalizes phases and statuses, assigns missing ids and
// rejects duplicates.
func (s *Suite) normalize() error {
	seen := make(map[string]struct{}, len(s.Cases))
	for i, c := range s.Cases {
		if c.ID = strings.TrimSpace(c.ID); c.ID == "" {
			c.ID = fmt.Sprintf("case-%d", i+1)
		}
		if _, ok := seen[c.ID]; ok {
			return errors.AlreadyExistsf("case id %s", c.ID)
		}
		seen[c.ID] = struct{}{}

		phase, ok := core.ParsePhase(string(c.Phase))
		if !ok {
			return errors.NotValidf("phase %q of case %s", c.Phase, c.ID)
		}
		c.Phase = phase
		status, ok := core.ParseStatus(string(c.ExpectedStatus))
		if !ok {
			return errors.NotValidf("expected status %q of case %s", c.ExpectedStatus, c.ID)
		}
		c.ExpectedStatus = status
		c.Team = strings.TrimSpace(c.Team)
		c.InstanceType = strings.TrimSpace(c.InstanceType)
		c.Group = strings.TrimSpace(c.Group)
		c.ExpectedResponse = strings.TrimSpace(c.ExpectedResponse)
	}
	return nil
}

// DefaultEnv fills every row without an env with env. Workbooks describe a
// single environment and carry no env column.
func (s *Suite) DefaultEnv(env string) {
	for _, c := range s.Cases {
		if c.Env == "" {
			c.Env = env
		}
	}
	for i := range s.Endpoints {
		if s.Endpoints[i].Env == "" {
			s.Endpoints[i].Env = env
		}
	}
	for i := range s.Principals {
		if s.Principals[i].Env == "" {
			s.Principals[i].Env = env
		}
	}
	for i := range s.Variables {
		if s.Variables[i].Env == "" {
			s.Variables[i].Env = env
		}
	}
}

// EndpointTable builds the immutable endpoint lookup.
func (s *Suite) EndpointTable() *core.Endpoints {
	return core.NewEndpoints(s.Endpoints)
}

// PrincipalTable builds the immutable principal lookup.
func (s *Suite) PrincipalTable() *core.Principals {
	return core.NewPrincipals(s.Principals)
}

// VariableTable builds the immutable placeholder lookup.
func (s *Suite) VariableTable() core.Variables {
	return core.NewVariables(s.Variables)
}
