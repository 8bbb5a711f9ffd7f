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

package logger

import (
	"os"

	"github.com/juju/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pingcap/sqlaccept/pkg/config"
)

// InitGlobalLogger initializes zap global logger
func InitGlobalLogger(cfg config.Log) error {
	logger, err := New(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// New builds a console-encoded logger writing to the rotating file and,
// optionally, to stderr.
func New(cfg config.Log) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, errors.Annotatef(err, "log level %q", cfg.Level)
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())

	var writers []zapcore.WriteSyncer
	if cfg.File != "" {
		writers = append(writers, getLogWriter(cfg))
	}
	if cfg.Console || len(writers) == 0 {
		writers = append(writers, zapcore.Lock(os.Stderr))
	}
	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), level)
	return zap.New(core), nil
}

func getLogWriter(cfg config.Log) zapcore.WriteSyncer {
	lumberJackLogger := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
	}
	return zapcore.AddSync(lumberJackLogger)
}
