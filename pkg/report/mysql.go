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
	"time"

	"github.com/jinzhu/gorm"
	// register the mysql dialect
	_ "github.com/jinzhu/gorm/dialects/mysql"
	"github.com/juju/errors"

	"github.com/pingcap/sqlaccept/pkg/core"
	"github.com/pingcap/sqlaccept/util"
)

// RunRecord is one row per run.
type RunRecord struct {
	gorm.Model
	RunID      string    `gorm:"column:run_id;type:varchar(64);unique_index" json:"run_id"`
	Env        string    `gorm:"column:env;type:varchar(64)" json:"env"`
	StartedAt  time.Time `gorm:"column:started_at" json:"started_at"`
	FinishedAt time.Time `gorm:"column:finished_at" json:"finished_at"`
	Total      int       `gorm:"column:total" json:"total"`
	Executed   int       `gorm:"column:executed" json:"executed"`
	Passed     int       `gorm:"column:passed" json:"passed"`
	Failed     int       `gorm:"column:failed" json:"failed"`
}

// TableName ...
func (RunRecord) TableName() string { return "acceptance_runs" }

// CaseRecord is one row per case of a run.
type CaseRecord struct {
	gorm.Model
	RunID            string `gorm:"column:run_id;type:varchar(64);index" json:"run_id"`
	CaseID           string `gorm:"column:case_id;type:varchar(128)" json:"case_id"`
	Team             string `gorm:"column:team;type:varchar(128)" json:"team"`
	InstanceType     string `gorm:"column:instance_type;type:varchar(128)" json:"instance_type"`
	Env              string `gorm:"column:env;type:varchar(64)" json:"env"`
	UseCase          string `gorm:"column:use_case;type:text" json:"use_case"`
	Phase            string `gorm:"column:phase;type:varchar(16)" json:"phase"`
	Group            string `gorm:"column:principal_group;type:varchar(128)" json:"group"`
	Query            string `gorm:"column:query;type:text" json:"query"`
	ResolvedQuery    string `gorm:"column:resolved_query;type:text" json:"resolved_query"`
	ExpectedStatus   string `gorm:"column:expected_status;type:varchar(16)" json:"expected_status"`
	ExpectedResponse string `gorm:"column:expected_response;type:text" json:"expected_response"`
	ActualStatus     string `gorm:"column:actual_status;type:varchar(16)" json:"actual_status"`
	ActualResponse   string `gorm:"column:actual_response;type:mediumtext" json:"actual_response"`
	Result           string `gorm:"column:result;type:varchar(8)" json:"result"`
	ErrorMessage     string `gorm:"column:error_message;type:text" json:"error_message"`
	DurationMS       int64  `gorm:"column:duration_ms" json:"duration_ms"`
}

// TableName ...
func (CaseRecord) TableName() string { return "acceptance_case_results" }

// DB wraps the result database.
type DB struct {
	*gorm.DB
}

// OpenMySQL opens the result database.
func OpenMySQL(dsn string) (*DB, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &DB{db}, nil
}

// Migrate creates or extends the result tables.
func (db *DB) Migrate() error {
	return errors.Trace(db.AutoMigrate(&RunRecord{}, &CaseRecord{}).Error)
}

// MySQLWriter stores a run and its cases in one transaction.
type MySQLWriter struct {
	DB *DB
}

// Name implements Writer.
func (w *MySQLWriter) Name() string { return "mysql" }

// Write implements Writer.
func (w *MySQLWriter) Write(_ context.Context, res *core.RunResult) error {
	return errors.Trace(w.DB.Transaction(func(tx *gorm.DB) error {
		run := &RunRecord{
			RunID:      res.RunID,
			Env:        res.Env,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
			Total:      res.Summary.Total,
			Executed:   res.Summary.Executed,
			Passed:     res.Summary.Passed,
			Failed:     res.Summary.Failed,
		}
		if err := tx.Create(run).Error; err != nil {
			return errors.Annotatef(err, "save run %s", res.RunID)
		}
		for _, c := range res.Cases {
			if err := tx.Create(newCaseRecord(res.RunID, c)).Error; err != nil {
				return errors.Annotatef(err, "save case %s", c.ID)
			}
		}
		return nil
	}))
}

// FindCases returns the stored cases of a run in insertion order. A database
// that never received a run reports NotFound.
func (db *DB) FindCases(runID string) ([]*CaseRecord, error) {
	var result []*CaseRecord
	if err := db.Where("run_id = ?", runID).Order("id").Find(&result).Error; err != nil {
		if util.IsErrTableNotExists(err) {
			return nil, errors.NotFoundf("results of run %s", runID)
		}
		return nil, errors.Trace(err)
	}
	if len(result) == 0 {
		return nil, errors.NotFoundf("results of run %s", runID)
	}
	return result, nil
}

func newCaseRecord(runID string, c *core.TestCase) *CaseRecord {
	return &CaseRecord{
		RunID:            runID,
		CaseID:           c.ID,
		Team:             c.Team,
		InstanceType:     c.InstanceType,
		Env:              c.Env,
		UseCase:          c.UseCase,
		Phase:            string(c.Phase),
		Group:            c.Group,
		Query:            c.QueryText,
		ResolvedQuery:    c.ResolvedQueryText,
		ExpectedStatus:   string(c.ExpectedStatus),
		ExpectedResponse: c.ExpectedResponse,
		ActualStatus:     string(c.ActualStatus),
		ActualResponse:   c.ActualResponse,
		Result:           string(c.Result),
		ErrorMessage:     c.ErrorMessage,
		DurationMS:       c.Duration.Milliseconds(),
	}
}
