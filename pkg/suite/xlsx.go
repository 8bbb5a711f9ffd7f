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
	"strings"

	"github.com/juju/errors"
	"github.com/xuri/excelize/v2"

	"github.com/pingcap/sqlaccept/pkg/core"
)

// Workbook sheet names.
const (
	SheetCases     = "Test cases"
	SheetUsers     = "Users"
	SheetEndpoints = "Trino env"
	SheetVariables = "Variables"
)

// Workbook column headers, matched case-insensitively.
const (
	ColID               = "id"
	ColUseCase          = "Use case"
	ColTeam             = "Team"
	ColInstanceType     = "trino instance type"
	ColEnv              = "env"
	ColQuery            = "SQL query"
	ColPhase            = "phase"
	ColGroup            = "group"
	ColExpectedStatus   = "expected status"
	ColExpectedResponse = "expected response"
	ColActualStatus     = "actual status"
	ColResult           = "result"
	ColResponse         = "response"
	ColErrorMessage     = "error message"
	ColUser             = "user"
	ColCredential       = "credential"
	ColHost             = "host URL"
	ColName             = "name"
	ColValue            = "value"
)

// sheet is one worksheet indexed by header.
type sheet struct {
	name    string
	columns map[string]int
	rows    [][]string
}

func readSheet(f *excelize.File, name string, required ...string) (*sheet, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, errors.Annotatef(err, "read sheet %q", name)
	}
	s := &sheet{name: name, columns: make(map[string]int)}
	if len(rows) == 0 {
		return nil, errors.NotValidf("sheet %q without header", name)
	}
	for i, h := range rows[0] {
		s.columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if !s.has(col) {
			return nil, errors.NotFoundf("column %q in sheet %q", col, name)
		}
	}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		s.rows = append(s.rows, row)
	}
	return s, nil
}

func (s *sheet) has(col string) bool {
	_, ok := s.columns[strings.ToLower(col)]
	return ok
}

func (s *sheet) cell(row []string, col string) string {
	i, ok := s.columns[strings.ToLower(col)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func hasSheet(f *excelize.File, name string) bool {
	for _, s := range f.GetSheetList() {
		if s == name {
			return true
		}
	}
	return false
}

// LoadXLSX reads the workbook layout: "Test cases", "Users" and "Trino env"
// sheets, plus an optional "Variables" sheet.
func LoadXLSX(path string) (*Suite, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	s := &Suite{}
	cases, err := readSheet(f, SheetCases, ColTeam, ColInstanceType, ColQuery, ColExpectedStatus, ColGroup)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, row := range cases.rows {
		s.Cases = append(s.Cases, &core.TestCase{
			ID:               cases.cell(row, ColID),
			Team:             cases.cell(row, ColTeam),
			InstanceType:     cases.cell(row, ColInstanceType),
			Env:              cases.cell(row, ColEnv),
			UseCase:          cases.cell(row, ColUseCase),
			QueryText:        cases.cell(row, ColQuery),
			Phase:            core.Phase(cases.cell(row, ColPhase)),
			Group:            cases.cell(row, ColGroup),
			ExpectedStatus:   core.Status(cases.cell(row, ColExpectedStatus)),
			ExpectedResponse: cases.cell(row, ColExpectedResponse),
		})
	}

	users, err := readSheet(f, SheetUsers, ColGroup, ColUser)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, row := range users.rows {
		s.Principals = append(s.Principals, core.Principal{
			Env:           users.cell(row, ColEnv),
			Group:         users.cell(row, ColGroup),
			User:          users.cell(row, ColUser),
			CredentialRef: users.cell(row, ColCredential),
		})
	}

	endpoints, err := readSheet(f, SheetEndpoints, ColTeam, ColInstanceType, ColHost)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, row := range endpoints.rows {
		s.Endpoints = append(s.Endpoints, core.Endpoint{
			Team:         endpoints.cell(row, ColTeam),
			InstanceType: endpoints.cell(row, ColInstanceType),
			Env:          endpoints.cell(row, ColEnv),
			Host:         endpoints.cell(row, ColHost),
		})
	}

	if !hasSheet(f, SheetVariables) {
		return s, nil
	}
	vars, err := readSheet(f, SheetVariables, ColName, ColValue)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, row := range vars.rows {
		s.Variables = append(s.Variables, core.Variable{
			Env:   vars.cell(row, ColEnv),
			Name:  vars.cell(row, ColName),
			Value: vars.cell(row, ColValue),
		})
	}
	return s, nil
}
