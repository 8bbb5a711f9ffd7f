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

package variable

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcap/sqlaccept/pkg/core"
)

type countingPrompter struct {
	answers map[string]string
	asked   []string
	err     error
}

func (p *countingPrompter) Prompt(label string) (string, error) {
	p.asked = append(p.asked, label)
	if p.err != nil {
		return "", p.err
	}
	for name, v := range p.answers {
		if label == promptLabel(name) {
			return v, nil
		}
	}
	return "", nil
}

func promptLabel(name string) string {
	return "Enter value for variable '" + name + "' (env dev): "
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders("select * from ##schema##.t where id = ##account_id## and x = ##schema## and y = '##'")
	assert.Equal(t, []string{"schema", "account_id"}, names)
}

func TestResolveFromTable(t *testing.T) {
	table := core.NewVariables([]core.Variable{
		{Env: "dev", Name: "account_id", Value: "42"},
		{Env: "prod", Name: "account_id", Value: "7"},
	})
	prompter := &countingPrompter{}
	r := NewResolver("dev", table, prompter)
	cases := []*core.TestCase{{QueryText: "SELECT * FROM accounts WHERE id = ##account_id##;"}}

	require.NoError(t, r.ResolveAll(cases))
	assert.Empty(t, prompter.asked)
	assert.Equal(t, "SELECT * FROM accounts WHERE id = 42", r.Substitute(cases[0].QueryText))
}

func TestResolvePromptsOncePerName(t *testing.T) {
	prompter := &countingPrompter{answers: map[string]string{"catalog": "hive"}}
	r := NewResolver("dev", core.NewVariables(nil), prompter)
	cases := []*core.TestCase{
		{QueryText: "SHOW SCHEMAS FROM ##catalog##"},
		{QueryText: "SHOW TABLES FROM ##catalog##.default"},
	}

	require.NoError(t, r.ResolveAll(cases))
	require.NoError(t, r.ResolveAll(cases))
	assert.Len(t, prompter.asked, 1)
	assert.Equal(t, map[string]string{"catalog": "hive"}, r.Bindings())
	assert.Equal(t, "SHOW TABLES FROM hive.default", r.Substitute(cases[1].QueryText))
}

func TestResolvePromptError(t *testing.T) {
	prompter := &countingPrompter{err: errors.New("EOF")}
	r := NewResolver("dev", core.NewVariables(nil), prompter)
	err := r.ResolveAll([]*core.TestCase{{QueryText: "select ##x##"}})
	assert.Error(t, err)
}

func TestSubstituteLeavesUnboundVerbatim(t *testing.T) {
	r := NewResolver("dev", core.NewVariables(nil), nil)
	require.NoError(t, r.ResolveAll([]*core.TestCase{{QueryText: "select ##missing##"}}))
	assert.Equal(t, "select ##missing##", r.Substitute("  select ##missing## ;\n"))
}

func TestSubstituteStripsOneTerminator(t *testing.T) {
	r := NewResolver("dev", core.NewVariables(nil), nil)
	assert.Equal(t, "select 1;", r.Substitute("select 1;;"))
	assert.Equal(t, "select 1", r.Substitute("\tselect 1 ; "))
}
