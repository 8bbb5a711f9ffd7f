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

package history

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/pingcap/sqlaccept/pkg/core"
)

// Record is one line of the history file, written when a case finishes.
type Record struct {
	RunID string          `json:"run_id"`
	Time  time.Time       `json:"time"`
	Case  *core.TestCase  `json:"case"`
	Sum   core.RunSummary `json:"summary"`
}

// maxLatency is the largest case duration tracked by the latency histogram.
const maxLatency = time.Hour

// Recorder is the shared result table of a run. Every mutation of a case's
// result fields and every summary snapshot takes the same lock.
type Recorder struct {
	runID   string
	checker core.Checker

	sync.Mutex
	cases []*core.TestCase
	index map[*core.TestCase]struct{}
	hist  *hdrhistogram.Histogram
	f     *os.File
	w     *bufio.Writer
}

// NewRecorder creates a Recorder over cases. When name is not empty every
// finished case is appended to it as a JSON line.
func NewRecorder(runID string, cases []*core.TestCase, checker core.Checker, name string) (*Recorder, error) {
	if checker == nil {
		checker = core.TolerantChecker{}
	}
	r := &Recorder{
		runID:   runID,
		checker: checker,
		cases:   cases,
		index:   make(map[*core.TestCase]struct{}, len(cases)),
		hist:    hdrhistogram.New(0, maxLatency.Microseconds(), 3),
	}
	for _, c := range cases {
		r.index[c] = struct{}{}
	}
	if name != "" {
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Trace(err)
		}
		r.f = f
		r.w = bufio.NewWriter(f)
	}
	return r, nil
}

// Begin stores the resolved statement of c and marks its start time.
func (r *Recorder) Begin(c *core.TestCase, resolved string) {
	r.Lock()
	defer r.Unlock()
	c.ResolvedQueryText = resolved
	c.StartedAt = time.Now()
}

// RecordOutcome stores the runner's outcome and the derived verdict.
func (r *Recorder) RecordOutcome(c *core.TestCase, o core.Outcome) (core.Result, error) {
	r.Lock()
	defer r.Unlock()
	if err := r.checkWritable(c); err != nil {
		return "", err
	}
	c.ActualStatus = o.Status
	c.ActualResponse = o.Response
	c.ErrorMessage = o.ErrorMessage
	c.Result = r.checker.Check(c, o)
	r.finish(c)
	return c.Result, nil
}

// RecordFailure marks c as ERROR/FAIL without it having reached the engine.
func (r *Recorder) RecordFailure(c *core.TestCase, msg string) error {
	r.Lock()
	defer r.Unlock()
	if err := r.checkWritable(c); err != nil {
		return err
	}
	c.ActualStatus = core.StatusError
	c.ActualResponse = ""
	c.ErrorMessage = msg
	c.Result = core.ResultFail
	r.finish(c)
	return nil
}

func (r *Recorder) checkWritable(c *core.TestCase) error {
	if _, ok := r.index[c]; !ok {
		return errors.NotFoundf("case %s in this run", c.ID)
	}
	if c.Executed() {
		return errors.AlreadyExistsf("result of case %s", c.ID)
	}
	return nil
}

// finish must be called with the lock held.
func (r *Recorder) finish(c *core.TestCase) {
	if !c.StartedAt.IsZero() {
		c.Duration = time.Since(c.StartedAt)
		d := c.Duration
		if d > maxLatency {
			d = maxLatency
		}
		_ = r.hist.RecordValue(d.Microseconds())
	}
	if r.w == nil {
		return
	}
	data, err := json.Marshal(Record{RunID: r.runID, Time: time.Now(), Case: c, Sum: core.Summarize(r.cases)})
	if err == nil {
		data = append(data, '\n')
		_, err = r.w.Write(data)
	}
	if err == nil {
		err = r.w.Flush()
	}
	if err != nil {
		zap.L().Warn("record history failed", zap.String("case", c.ID), zap.Error(err))
	}
}

// Summary takes a consistent snapshot of the counts.
func (r *Recorder) Summary() core.RunSummary {
	r.Lock()
	defer r.Unlock()
	return core.Summarize(r.cases)
}

// Latency returns the mean and the 99th percentile duration of the cases that
// reached the engine.
func (r *Recorder) Latency() (mean, p99 time.Duration) {
	r.Lock()
	defer r.Unlock()
	if r.hist.TotalCount() == 0 {
		return 0, 0
	}
	mean = time.Duration(r.hist.Mean()) * time.Microsecond
	p99 = time.Duration(r.hist.ValueAtQuantile(99)) * time.Microsecond
	return mean, p99
}

// Snapshot copies every case in suite order.
func (r *Recorder) Snapshot() []*core.TestCase {
	r.Lock()
	defer r.Unlock()
	cp := make([]*core.TestCase, len(r.cases))
	for i, c := range r.cases {
		cp[i] = c.Clone()
	}
	return cp
}

// Close flushes and closes the history file.
func (r *Recorder) Close() error {
	r.Lock()
	defer r.Unlock()
	if r.f == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		r.f.Close()
		return errors.Trace(err)
	}
	err := r.f.Close()
	r.f, r.w = nil, nil
	return errors.Trace(err)
}

// ReadHistory reads every record of a history file.
func ReadHistory(name string) ([]Record, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, errors.Annotatef(err, "parse history line %q", scanner.Text())
		}
		records = append(records, rec)
	}
	return records, errors.Trace(scanner.Err())
}
