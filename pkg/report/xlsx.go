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

package report

import (
	"context"
	"os"

	"github.com/juju/errors"
	"github.com/xuri/excelize/v2"

	"github.com/pingcap/sqlaccept/pkg/core"
	"github.com/pingcap/sqlaccept/pkg/suite"
)

// SheetSummary holds the run counts.
const SheetSummary = "Summary"

var caseColumns = []string{
	suite.ColUseCase,
	suite.ColTeam,
	suite.ColInstanceType,
	suite.ColQuery,
	suite.ColExpectedStatus,
	suite.ColGroup,
	suite.ColActualStatus,
	suite.ColResult,
	suite.ColID,
	suite.ColEnv,
	suite.ColPhase,
	suite.ColExpectedResponse,
	suite.ColResponse,
	suite.ColErrorMessage,
}

// defaultSheet is created with every new workbook.
const defaultSheet = "Sheet1"

// resultColumn is the 1-based column of suite.ColResult.
const resultColumn = 8

// XLSXWriter writes the cases back in the workbook layout with the result
// cell filled green for PASS and red for FAIL. An existing workbook at Path,
// such as the suite itself, keeps its other sheets.
type XLSXWriter struct {
	Path string
}

// Name implements Writer.
func (w *XLSXWriter) Name() string { return "xlsx" }

// Write implements Writer.
func (w *XLSXWriter) Write(_ context.Context, res *core.RunResult) error {
	f, created, err := w.open()
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()

	if _, err := resetSheet(f, suite.SheetCases); err != nil {
		return errors.Trace(err)
	}
	pass, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"00FF00"}}})
	if err != nil {
		return errors.Trace(err)
	}
	fail, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FF0000"}}})
	if err != nil {
		return errors.Trace(err)
	}

	header := make([]interface{}, len(caseColumns))
	for i, c := range caseColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(suite.SheetCases, "A1", &header); err != nil {
		return errors.Trace(err)
	}
	for i, c := range res.Cases {
		row := []interface{}{
			c.UseCase, c.Team, c.InstanceType, c.QueryText, string(c.ExpectedStatus), c.Group,
			string(c.ActualStatus), string(c.Result), c.ID, c.Env, string(c.Phase),
			c.ExpectedResponse, c.ActualResponse, c.ErrorMessage,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Trace(err)
		}
		if err := f.SetSheetRow(suite.SheetCases, cell, &row); err != nil {
			return errors.Trace(err)
		}
		style := 0
		switch c.Result {
		case core.ResultPass:
			style = pass
		case core.ResultFail:
			style = fail
		}
		if style == 0 {
			continue
		}
		resultCell, err := excelize.CoordinatesToCellName(resultColumn, i+2)
		if err != nil {
			return errors.Trace(err)
		}
		if err := f.SetCellStyle(suite.SheetCases, resultCell, resultCell, style); err != nil {
			return errors.Trace(err)
		}
	}

	if err := w.writeSummary(f, res); err != nil {
		return errors.Trace(err)
	}
	if created {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return errors.Trace(err)
		}
	}
	idx, err := f.GetSheetIndex(suite.SheetCases)
	if err != nil {
		return errors.Trace(err)
	}
	f.SetActiveSheet(idx)
	return errors.Trace(f.SaveAs(w.Path))
}

// open returns the workbook at Path, or a new one and true.
func (w *XLSXWriter) open() (*excelize.File, bool, error) {
	if _, err := os.Stat(w.Path); os.IsNotExist(err) {
		return excelize.NewFile(), true, nil
	}
	f, err := excelize.OpenFile(w.Path)
	return f, false, err
}

func (w *XLSXWriter) writeSummary(f *excelize.File, res *core.RunResult) error {
	if _, err := resetSheet(f, SheetSummary); err != nil {
		return err
	}
	rows := [][]interface{}{
		{"run id", res.RunID},
		{"env", res.Env},
		{"started at", res.StartedAt.Format("2006-01-02 15:04:05")},
		{"finished at", res.FinishedAt.Format("2006-01-02 15:04:05")},
		{"total", res.Summary.Total},
		{"executed", res.Summary.Executed},
		{"passed", res.Summary.Passed},
		{"failed", res.Summary.Failed},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSummary, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// resetSheet recreates sheet empty, keeping the rest of the workbook.
func resetSheet(f *excelize.File, sheet string) (int, error) {
	if idx, _ := f.GetSheetIndex(sheet); idx != -1 {
		if err := f.DeleteSheet(sheet); err != nil {
			return 0, err
		}
	}
	return f.NewSheet(sheet)
}
