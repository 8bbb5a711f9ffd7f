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
	"encoding/json"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/pingcap/sqlaccept/pkg/report"
)

func newShowCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the case results of a run stored in the result database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("mysql-dsn") {
				cfg.Report.MySQLDSN = dsn
			}
			if cfg.Report.MySQLDSN == "" {
				return errors.NotValidf("empty mysql-dsn")
			}
			db, err := report.OpenMySQL(cfg.Report.MySQLDSN)
			if err != nil {
				return errors.Annotate(err, "open result database")
			}
			defer db.Close()

			cases, err := db.FindCases(args[0])
			if err != nil {
				return errors.Trace(err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return errors.Trace(enc.Encode(cases))
		},
	}
	cmd.Flags().StringVar(&dsn, "mysql-dsn", "", "Result database DSN, overrides report.mysql-dsn")
	return cmd
}
