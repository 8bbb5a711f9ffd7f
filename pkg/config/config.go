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

package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/errors"
	"github.com/mohae/deepcopy"

	"github.com/pingcap/sqlaccept/pkg/connection"
	"github.com/pingcap/sqlaccept/pkg/core"
)

// Duration wraps time.Duration for toml text values like "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return errors.Trace(err)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Engine selects the driver and DSN defaults for every endpoint.
type Engine struct {
	Driver          string   `toml:"driver"`
	Scheme          string   `toml:"scheme"`
	DefaultPort     int      `toml:"default-port"`
	Catalog         string   `toml:"catalog"`
	Schema          string   `toml:"schema"`
	Source          string   `toml:"source"`
	ConnectAttempts int      `toml:"connect-attempts"`
	RetryInterval   Duration `toml:"retry-interval"`
	ProbeQuery      string   `toml:"probe-query"`
	// Proxy routes mysql driver dials, e.g. "socks5://bastion:1080".
	Proxy string `toml:"proxy"`
}

// Log configures the global logger.
type Log struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSize    int    `toml:"max-size"`
	MaxBackups int    `toml:"max-backups"`
	Console    bool   `toml:"console"`
}

// S3 is where report files are uploaded.
type S3 struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access-key"`
	SecretKey string `toml:"secret-key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Secure    bool   `toml:"secure"`
}

// Enabled reports whether an upload target is configured.
func (s S3) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// Report lists the outputs of a run. Empty values disable an output.
type Report struct {
	JSON     string `toml:"json"`
	XLSX     string `toml:"xlsx"`
	History  string `toml:"history"`
	MySQLDSN string `toml:"mysql-dsn"`
	S3       S3     `toml:"s3"`
}

// Config struct
type Config struct {
	Env            string   `toml:"env"`
	Teams          []string `toml:"teams"`
	Suite          string   `toml:"suite"`
	ReportInterval Duration `toml:"report-interval"`
	CaseTimeout    Duration `toml:"case-timeout"`
	StatusAddr     string   `toml:"status-addr"`
	Engine         Engine   `toml:"engine"`
	Log            Log      `toml:"log"`
	Report         Report   `toml:"report"`
}

var initConfig = Config{
	Teams: []string{"all"},
	Engine: Engine{
		Driver:          connection.DriverTrino,
		Scheme:          "https",
		DefaultPort:     443,
		Source:          "sqlaccept",
		ConnectAttempts: 1,
		RetryInterval:   Duration{Duration: 500 * time.Millisecond},
	},
	Log: Log{
		Level:      "info",
		MaxSize:    100,
		MaxBackups: 5,
		Console:    true,
	},
}

// Init get default Config
func Init() *Config {
	return initConfig.Copy()
}

// Load config from file
func (c *Config) Load(path string) error {
	_, err := toml.DecodeFile(path, c)
	return errors.Annotatef(err, "load config %s", path)
}

// Copy Config struct
func (c *Config) Copy() *Config {
	return deepcopy.Copy(c).(*Config)
}

// SetTeams parses a comma separated team list.
func (c *Config) SetTeams(s string) {
	c.Teams = c.Teams[:0]
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			c.Teams = append(c.Teams, t)
		}
	}
}

// DriverConfig returns the connection settings of the engine section.
func (c *Config) DriverConfig() connection.DriverConfig {
	return connection.DriverConfig{
		Name:        c.Engine.Driver,
		Scheme:      c.Engine.Scheme,
		DefaultPort: c.Engine.DefaultPort,
		Catalog:     c.Engine.Catalog,
		Schema:      c.Engine.Schema,
		Source:      c.Engine.Source,
	}
}

// Validate reports every problem at once. The result is a core.FatalError.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Env == "" {
		result = multierror.Append(result, errors.NotValidf("empty env"))
	}
	if c.Suite == "" {
		result = multierror.Append(result, errors.NotValidf("empty suite path"))
	}
	if c.ReportInterval.Duration <= 0 {
		result = multierror.Append(result, errors.NotValidf("report-interval %s", c.ReportInterval.Duration))
	}
	if c.CaseTimeout.Duration < 0 {
		result = multierror.Append(result, errors.NotValidf("case-timeout %s", c.CaseTimeout.Duration))
	}
	switch c.Engine.Driver {
	case connection.DriverTrino, connection.DriverMySQL, connection.DriverPostgres:
	default:
		result = multierror.Append(result, errors.NotSupportedf("engine driver %q", c.Engine.Driver))
	}
	if c.Engine.Proxy != "" && c.Engine.Driver != connection.DriverMySQL {
		result = multierror.Append(result, errors.NotSupportedf("proxy with engine driver %q", c.Engine.Driver))
	}
	if c.Engine.ConnectAttempts < 1 {
		result = multierror.Append(result, errors.NotValidf("connect-attempts %d", c.Engine.ConnectAttempts))
	}
	if s := c.Report.S3; s.Endpoint != "" || s.Bucket != "" {
		if !s.Enabled() {
			result = multierror.Append(result, errors.NotValidf("s3 report needs both endpoint and bucket"))
		}
	}
	return core.Fatal(result.ErrorOrNil())
}
