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
	"encoding/json"
	"io/ioutil"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/pingcap/sqlaccept/pkg/core"
)

// Writer persists a finished run.
type Writer interface {
	Write(ctx context.Context, res *core.RunResult) error
	Name() string
}

// WriteAll hands res to every writer in order. A failing writer does not stop
// the others; all failures are returned together.
func WriteAll(ctx context.Context, res *core.RunResult, writers ...Writer) error {
	var result *multierror.Error
	for _, w := range writers {
		if err := w.Write(ctx, res); err != nil {
			zap.L().Error("write report failed", zap.String("writer", w.Name()), zap.Error(err))
			result = multierror.Append(result, errors.Annotatef(err, "%s report", w.Name()))
			continue
		}
		zap.L().Info("report written", zap.String("writer", w.Name()))
	}
	return result.ErrorOrNil()
}

// JSONWriter dumps the whole result as one indented document.
type JSONWriter struct {
	Path string
}

// Name implements Writer.
func (w *JSONWriter) Name() string { return "json" }

// Write implements Writer.
func (w *JSONWriter) Write(_ context.Context, res *core.RunResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ioutil.WriteFile(w.Path, data, 0644))
}
