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
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pingcap/sqlaccept/pkg/core"
)

const sampleYAML = `
cases:
  - id: create
    team: finance
    instance_type: adhoc
    env: dev
    phase: setup
    group: admin
    query: CREATE TABLE t (id int)
    expected_status: completed
  - team: finance
    instance_type: adhoc
    env: dev
    group: analyst
    use_case: analyst reads accounts
    query: SELECT * FROM accounts WHERE id = ##account_id##
    expected_status: COMPLETED
    expected_response: " 42 "
  - team: finance
    instance_type: adhoc
    env: dev
    phase: clean-up
    group: admin
    query: DROP TABLE t
    expected_status: COMPLETED
endpoints:
  - {team: finance, instance_type: adhoc, env: dev, host: "https://trino.dev:8443"}
principals:
  - {env: dev, group: analyst, user: alice, credential: "env:ALICE_PW"}
  - {env: dev, group: admin, user: root}
variables:
  - {env: dev, name: account_id, value: "42"}
`

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "suite")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestLoadYAML(t *testing.T) {
	name := filepath.Join(tempDir(t), "suite.yaml")
	require.NoError(t, ioutil.WriteFile(name, []byte(sampleYAML), 0644))

	s, err := Load(name)
	require.NoError(t, err)
	require.Len(t, s.Cases, 3)

	assert.Equal(t, "create", s.Cases[0].ID)
	assert.Equal(t, core.PhaseSetup, s.Cases[0].Phase)
	assert.Equal(t, core.StatusCompleted, s.Cases[0].ExpectedStatus)
	assert.Equal(t, "case-2", s.Cases[1].ID)
	assert.Equal(t, core.PhaseTest, s.Cases[1].Phase)
	assert.Equal(t, "42", s.Cases[1].ExpectedResponse)
	assert.Equal(t, "analyst reads accounts", s.Cases[1].UseCase)
	assert.Equal(t, core.PhaseCleanUp, s.Cases[2].Phase)

	host, ok := s.EndpointTable().Host("finance", "adhoc", "dev")
	assert.True(t, ok)
	assert.Equal(t, "https://trino.dev:8443", host)
	p, ok := s.PrincipalTable().Principal("dev", "analyst")
	assert.True(t, ok)
	assert.Equal(t, "env:ALICE_PW", p.CredentialRef)
	v, ok := s.VariableTable().Variable("dev", "account_id")
	assert.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestLoadRejectsBadRows(t *testing.T) {
	dir := tempDir(t)
	for doc, check := range map[string]func(error) bool{
		"cases: [{id: a, expected_status: COMPLETED}, {id: a, expected_status: ERROR}]": errors.IsAlreadyExists,
		"cases: [{id: a, expected_status: MAYBE}]":                                      errors.IsNotValid,
		"cases: [{id: a, phase: teardown, expected_status: ERROR}]":                     errors.IsNotValid,
	} {
		name := filepath.Join(dir, "bad.yml")
		require.NoError(t, ioutil.WriteFile(name, []byte(doc), 0644))
		_, err := Load(name)
		require.Error(t, err, doc)
		assert.True(t, check(errors.Cause(err)), "%s: %v", doc, err)
	}

	_, err := Load(filepath.Join(dir, "suite.csv"))
	assert.True(t, errors.IsNotSupported(err))
}

func writeWorkbook(t *testing.T, name string, sheets map[string][][]string) {
	f := excelize.NewFile()
	for sheet, rows := range sheets {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		for i := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
		}
	}
	require.NoError(t, f.SaveAs(name))
	require.NoError(t, f.Close())
}

func TestLoadXLSX(t *testing.T) {
	name := filepath.Join(tempDir(t), "suite.xlsx")
	writeWorkbook(t, name, map[string][][]string{
		SheetCases: {
			{"Use case", "Team", "trino instance type", "SQL query", "expected status", "group", "actual status", "result"},
			{"list tables", "finance", "adhoc", "SHOW TABLES", "COMPLETED", "analyst"},
			{},
			{"drop missing", "finance", "adhoc", "DROP TABLE nonexistent", "error", "analyst", "ERROR", "PASS"},
		},
		SheetUsers: {
			{"group", "user"},
			{"analyst", "alice"},
		},
		SheetEndpoints: {
			{"Team", "trino instance type", "host URL"},
			{"finance", "adhoc", "trino.dev"},
		},
	})

	s, err := Load(name)
	require.NoError(t, err)
	s.DefaultEnv("dev")

	require.Len(t, s.Cases, 2)
	assert.Equal(t, "list tables", s.Cases[0].UseCase)
	assert.Equal(t, "SHOW TABLES", s.Cases[0].QueryText)
	assert.Equal(t, core.PhaseTest, s.Cases[0].Phase)
	assert.Equal(t, "dev", s.Cases[0].Env)
	assert.Equal(t, core.StatusError, s.Cases[1].ExpectedStatus)
	// results of an earlier run are not read back
	assert.False(t, s.Cases[1].Executed())

	host, ok := s.EndpointTable().Host("finance", "adhoc", "dev")
	assert.True(t, ok)
	assert.Equal(t, "trino.dev", host)
	p, ok := s.PrincipalTable().Principal("dev", "analyst")
	assert.True(t, ok)
	assert.Equal(t, "alice", p.User)
	assert.Empty(t, s.Variables)
}

func TestLoadXLSXMissingColumn(t *testing.T) {
	name := filepath.Join(tempDir(t), "suite.xlsx")
	writeWorkbook(t, name, map[string][][]string{
		SheetCases:     {{"Team", "SQL query"}},
		SheetUsers:     {{"group", "user"}},
		SheetEndpoints: {{"Team", "trino instance type", "host URL"}},
	})
	_, err := Load(name)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(errors.Cause(err)))
}
