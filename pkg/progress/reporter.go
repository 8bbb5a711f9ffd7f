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

package progress

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/pingcap/sqlaccept/pkg/core"
)

// Tags passed to Emit.
const (
	TagRun   = "run"
	TagFinal = "final"
)

// SummarySource yields consistent snapshots of the run counts.
type SummarySource interface {
	Summary() core.RunSummary
}

// Emit publishes one summary.
type Emit func(tag string, s core.RunSummary, startTime time.Time)

// Reporter periodically emits the run summary until the run is done.
type Reporter struct {
	interval time.Duration
	source   SummarySource
	emit     Emit

	done      atomic.Bool
	wake      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	startTime time.Time
}

// NewReporter creates a Reporter. emit defaults to LogSummary.
func NewReporter(interval time.Duration, source SummarySource, emit Emit) *Reporter {
	if emit == nil {
		emit = LogSummary
	}
	return &Reporter{
		interval: interval,
		source:   source,
		emit:     emit,
		wake:     make(chan struct{}),
	}
}

// Start launches the background loop. Calling it again is a no-op.
func (r *Reporter) Start() {
	r.startOnce.Do(func() {
		r.startTime = time.Now()
		r.wg.Add(1)
		go r.loop()
	})
}

// Stop sets the completion flag and waits for the final summary.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		r.done.Store(true)
		close(r.wake)
	})
	r.wg.Wait()
}

func (r *Reporter) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-r.wake:
		}
		if r.done.Load() {
			r.emit(TagFinal, r.source.Summary(), r.startTime)
			return
		}
		r.emit(TagRun, r.source.Summary(), r.startTime)
	}
}

// LogSummary is the default Emit, one zap line per snapshot.
func LogSummary(tag string, s core.RunSummary, startTime time.Time) {
	zap.L().Info("progress",
		zap.String("tag", tag),
		zap.Int("total", s.Total),
		zap.Int("executed", s.Executed),
		zap.Int("passed", s.Passed),
		zap.Int("failed", s.Failed),
		zap.Duration("cost", time.Since(startTime).Round(time.Second)))
}
