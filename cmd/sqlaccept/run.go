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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/pingcap/sqlaccept/pkg/config"
	"github.com/pingcap/sqlaccept/pkg/connection"
	"github.com/pingcap/sqlaccept/pkg/control"
	"github.com/pingcap/sqlaccept/pkg/core"
	"github.com/pingcap/sqlaccept/pkg/credential"
	"github.com/pingcap/sqlaccept/pkg/logger"
	"github.com/pingcap/sqlaccept/pkg/report"
	"github.com/pingcap/sqlaccept/pkg/statusserver"
	"github.com/pingcap/sqlaccept/pkg/suite"
	"github.com/pingcap/sqlaccept/util"
)

// run executes one suite and reports whether any case failed.
func run(cfg *config.Config) (bool, error) {
	if err := logger.InitGlobalLogger(cfg.Log); err != nil {
		return false, core.Fatal(err)
	}
	defer zap.L().Sync()

	if err := cfg.Validate(); err != nil {
		return false, err
	}
	if !util.IsFileExist(cfg.Suite) {
		return false, core.Fatal(errors.NotFoundf("suite %s", cfg.Suite))
	}
	s, err := suite.Load(cfg.Suite)
	if err != nil {
		return false, core.Fatal(err)
	}
	s.DefaultEnv(cfg.Env)
	principals := s.PrincipalTable()

	prompter := credential.NewTerminalPrompter()
	creds, err := (&credential.Resolver{Prompter: prompter}).Resolve(principals.ForEnv(cfg.Env))
	if err != nil {
		return false, core.Fatal(err)
	}

	if cfg.Engine.Proxy != "" {
		if err := util.SetMySQLProxy(cfg.Engine.Proxy); err != nil {
			return false, core.Fatal(err)
		}
	}
	pool := connection.NewPool(connection.Options{
		Driver:          cfg.DriverConfig(),
		ConnectAttempts: cfg.Engine.ConnectAttempts,
		ProbeQuery:      cfg.Engine.ProbeQuery,
		RetryInterval:   cfg.Engine.RetryInterval.Duration,
	})
	defer func() {
		if err := pool.Close(); err != nil {
			zap.L().Warn("close connections failed", zap.Error(err))
		}
	}()

	ctl := control.NewController(&control.Config{
		Env:            cfg.Env,
		Teams:          cfg.Teams,
		CaseTimeout:    cfg.CaseTimeout.Duration,
		ReportInterval: cfg.ReportInterval.Duration,
		History:        cfg.Report.History,
	}, control.Tables{
		Endpoints:   s.EndpointTable(),
		Principals:  principals,
		Variables:   s.VariableTable(),
		Credentials: creds,
	}, pool, prompter, nil)

	if cfg.StatusAddr != "" {
		srv := statusserver.New(ctl)
		if err := srv.Start(cfg.StatusAddr); err != nil {
			return false, core.Fatal(err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				zap.L().Warn("stop status server failed", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(sigs)
	go func() {
		select {
		case sig := <-sigs:
			zap.L().Warn("canceling run", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := ctl.Run(ctx, s.Cases)
	if err != nil {
		return false, err
	}

	writers, err := reportWriters(cfg)
	if err != nil {
		zap.L().Error("prepare reports failed", zap.Error(err))
	}
	if err := report.WriteAll(context.Background(), res, writers...); err != nil {
		zap.L().Error("some reports were not written", zap.Error(err))
	}
	zap.L().Info("run finished",
		zap.String("run", res.RunID),
		zap.Int("total", res.Summary.Total),
		zap.Int("passed", res.Summary.Passed),
		zap.Int("failed", res.Summary.Failed),
		zap.Duration("cost", res.FinishedAt.Sub(res.StartedAt).Round(time.Second)))
	return res.Summary.Failed > 0, nil
}

// reportWriters builds the configured outputs. Files are uploaded last.
func reportWriters(cfg *config.Config) ([]report.Writer, error) {
	var (
		writers []report.Writer
		files   []string
	)
	if cfg.Report.JSON != "" {
		writers = append(writers, &report.JSONWriter{Path: cfg.Report.JSON})
		files = append(files, cfg.Report.JSON)
	}
	if cfg.Report.XLSX != "" {
		writers = append(writers, &report.XLSXWriter{Path: cfg.Report.XLSX})
		files = append(files, cfg.Report.XLSX)
	}
	if cfg.Report.History != "" {
		files = append(files, cfg.Report.History)
	}
	if cfg.Report.MySQLDSN != "" {
		var db *report.DB
		err := util.RunWithRetry(context.Background(), 3, 2*time.Second, func() error {
			var err error
			db, err = report.OpenMySQL(cfg.Report.MySQLDSN)
			return err
		})
		if err != nil {
			return writers, errors.Annotate(err, "open result database")
		}
		if err := db.Migrate(); err != nil {
			return writers, errors.Trace(err)
		}
		writers = append(writers, &report.MySQLWriter{DB: db})
	}
	if cfg.Report.S3.Enabled() && len(files) > 0 {
		client, err := report.NewS3Client(cfg.Report.S3)
		if err != nil {
			return writers, errors.Trace(err)
		}
		writers = append(writers, &report.S3Uploader{
			Client: client,
			Bucket: cfg.Report.S3.Bucket,
			Prefix: cfg.Report.S3.Prefix,
			Files:  files,
		})
	}
	return writers, nil
}
