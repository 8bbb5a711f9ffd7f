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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pingcap/sqlaccept/pkg/config"
	"github.com/pingcap/sqlaccept/pkg/core"
)

var (
	configPath  string
	suitePath   string
	env         string
	teams       string
	interval    time.Duration
	caseTimeout time.Duration
	statusAddr  string
	reportJSON  string
	reportXLSX  string
	history     string
	logFile     string
	logLevel    string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:           "sqlaccept",
		Short:         "Run SQL acceptance suites against query engines",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			failed, err := run(cfg)
			if err != nil {
				return err
			}
			if failed {
				os.Exit(1)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file")
	rootCmd.PersistentFlags().StringVarP(&suitePath, "suite", "s", "", "Suite file, .yaml or .xlsx")
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment to run against")
	rootCmd.PersistentFlags().StringVarP(&teams, "teams", "t", "", "Comma separated teams, or all")
	rootCmd.PersistentFlags().DurationVar(&interval, "interval", 0, "Progress report interval")
	rootCmd.PersistentFlags().DurationVar(&caseTimeout, "case-timeout", 0, "Deadline of a single case, 0 disables it")
	rootCmd.PersistentFlags().StringVar(&statusAddr, "status-addr", "", "Serve live status on this address")
	rootCmd.PersistentFlags().StringVar(&reportJSON, "report-json", "", "Write the result as JSON")
	rootCmd.PersistentFlags().StringVar(&reportXLSX, "report-xlsx", "", "Write the result as a workbook")
	rootCmd.PersistentFlags().StringVar(&history, "history", "", "Append finished cases to this file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level")
	rootCmd.AddCommand(newShowCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies every flag that was set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Init()
	if configPath != "" {
		if err := cfg.Load(configPath); err != nil {
			return nil, core.Fatal(err)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("suite") {
		cfg.Suite = suitePath
	}
	if flags.Changed("env") {
		cfg.Env = env
	}
	if flags.Changed("teams") {
		cfg.SetTeams(teams)
	}
	if flags.Changed("interval") {
		cfg.ReportInterval.Duration = interval
	}
	if flags.Changed("case-timeout") {
		cfg.CaseTimeout.Duration = caseTimeout
	}
	if flags.Changed("status-addr") {
		cfg.StatusAddr = statusAddr
	}
	if flags.Changed("report-json") {
		cfg.Report.JSON = reportJSON
	}
	if flags.Changed("report-xlsx") {
		cfg.Report.XLSX = reportXLSX
	}
	if flags.Changed("history") {
		cfg.Report.History = history
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}
