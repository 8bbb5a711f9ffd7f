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

package control

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pingcap/sqlaccept/pkg/connection"
	"github.com/pingcap/sqlaccept/pkg/core"
	"github.com/pingcap/sqlaccept/pkg/history"
	"github.com/pingcap/sqlaccept/pkg/progress"
	"github.com/pingcap/sqlaccept/pkg/runner"
	"github.com/pingcap/sqlaccept/pkg/variable"
)

// Tables are the immutable lookups of a run.
type Tables struct {
	Endpoints   core.EndpointTable
	Principals  core.PrincipalTable
	Variables   core.VariableTable
	Credentials core.CredentialStore
}

// Controller schedules a suite through Setup, Test and CleanUp. Setup and
// CleanUp run sequentially on the caller's goroutine, the Test phase runs one
// worker per team and is joined before CleanUp starts.
type Controller struct {
	cfg      *Config
	tables   Tables
	pool     *connection.Pool
	resolver *variable.Resolver
	runner   *runner.Runner
	checker  core.Checker

	// Emit receives the progress summaries, zap by default.
	Emit progress.Emit

	// protect started, state and recorder
	sync.RWMutex
	started  bool
	state    State
	recorder *history.Recorder
}

// NewController creates a controller. The pool is owned by the caller, which
// closes it when the process exits.
func NewController(cfg *Config, tables Tables, pool *connection.Pool, prompter variable.Prompter, checker core.Checker) *Controller {
	cfg.adjust()
	if checker == nil {
		checker = core.TolerantChecker{}
	}
	c := &Controller{
		cfg:      cfg,
		tables:   tables,
		pool:     pool,
		resolver: variable.NewResolver(cfg.Env, tables.Variables, prompter),
		runner:   runner.New(0),
		checker:  checker,
	}
	zap.L().Info("start controller",
		zap.String("run", cfg.RunID),
		zap.String("env", cfg.Env),
		zap.Strings("teams", cfg.Teams),
		zap.Duration("case-timeout", cfg.CaseTimeout))
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.RLock()
	defer c.RUnlock()
	return c.state
}

// StateName returns the current state for display.
func (c *Controller) StateName() string {
	return c.State().String()
}

// RunID identifies the run.
func (c *Controller) RunID() string {
	return c.cfg.RunID
}

// Env is the selected environment.
func (c *Controller) Env() string {
	return c.cfg.Env
}

// Summary returns the live counts, zero before the run starts.
func (c *Controller) Summary() core.RunSummary {
	c.RLock()
	r := c.recorder
	c.RUnlock()
	if r == nil {
		return core.RunSummary{}
	}
	return r.Summary()
}

// Snapshot copies the case table, nil before the run starts.
func (c *Controller) Snapshot() []*core.TestCase {
	c.RLock()
	r := c.recorder
	c.RUnlock()
	if r == nil {
		return nil
	}
	return r.Snapshot()
}

func (c *Controller) setState(s State) {
	c.Lock()
	defer c.Unlock()
	zap.L().Info("scheduler state", zap.Stringer("from", c.state), zap.Stringer("to", s))
	c.state = s
}

// Run executes the suite once. Case failures are recorded on the cases; an
// error is returned only for a FatalError raised before Setup starts.
func (c *Controller) Run(ctx context.Context, suite []*core.TestCase) (*core.RunResult, error) {
	c.Lock()
	if c.started {
		c.Unlock()
		return nil, errors.AlreadyExistsf("run %s", c.cfg.RunID)
	}
	c.started = true
	c.Unlock()

	res, err := c.run(ctx, suite)
	if err != nil {
		// nothing ran, a later Run may retry
		c.Lock()
		c.started = false
		c.Unlock()
	}
	return res, err
}

func (c *Controller) run(ctx context.Context, suite []*core.TestCase) (*core.RunResult, error) {
	if c.cfg.Env == "" {
		return nil, core.Fatal(errors.NotValidf("empty env"))
	}
	plan := Partition(suite, c.cfg)
	cases := plan.Cases(suite)

	if err := c.resolver.ResolveAll(cases); err != nil {
		return nil, core.Fatal(errors.Annotate(err, "resolve variables"))
	}
	recorder, err := history.NewRecorder(c.cfg.RunID, cases, c.checker, c.cfg.History)
	if err != nil {
		return nil, core.Fatal(errors.Annotatef(err, "prepare history %s", c.cfg.History))
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			zap.L().Warn("close history failed", zap.Error(err))
		}
	}()
	c.Lock()
	c.recorder = recorder
	c.Unlock()

	zap.L().Info("run planned",
		zap.Int("cases", len(cases)),
		zap.Int("setup", len(plan.Setup)),
		zap.Int("teams", len(plan.Teams)),
		zap.Int("cleanup", len(plan.CleanUp)))

	startTime := time.Now()
	reporter := progress.NewReporter(c.cfg.ReportInterval, recorder, c.Emit)
	reporter.Start()

	c.setState(StateRunningSetup)
	c.runSequential(ctx, plan.Setup)

	c.setState(StateRunningTests)
	c.runTeams(ctx, plan.Teams)

	c.setState(StateRunningCleanup)
	c.runSequential(ctx, plan.CleanUp)

	reporter.Stop()
	c.setState(StateDone)
	mean, p99 := recorder.Latency()
	zap.L().Info("run finished", zap.String("run", c.cfg.RunID),
		zap.Duration("mean-latency", mean), zap.Duration("p99-latency", p99))

	return &core.RunResult{
		RunID:      c.cfg.RunID,
		Env:        c.cfg.Env,
		StartedAt:  startTime,
		FinishedAt: time.Now(),
		Cases:      recorder.Snapshot(),
		Summary:    recorder.Summary(),
	}, nil
}

func (c *Controller) runSequential(ctx context.Context, cases []*core.TestCase) {
	for _, tc := range cases {
		c.runCase(ctx, tc)
	}
}

func (c *Controller) runTeams(ctx context.Context, teams []TeamCases) {
	var g errgroup.Group
	for _, t := range teams {
		t := t
		g.Go(func() error {
			zap.L().Info("run team", zap.String("team", t.Team), zap.Int("cases", len(t.Cases)))
			c.runSequential(ctx, t.Cases)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Controller) runCase(ctx context.Context, tc *core.TestCase) {
	log := zap.L().With(zap.String("case", tc.ID), zap.String("team", tc.Team), zap.String("use-case", tc.UseCase))
	if ctx.Err() != nil {
		c.fail(log, tc, &core.LookupError{Message: core.MsgRunCanceled, Detail: ctx.Err().Error()})
		return
	}

	host, ok := c.tables.Endpoints.Host(tc.Team, tc.InstanceType, tc.Env)
	if !ok {
		c.fail(log, tc, &core.LookupError{Message: core.MsgHostNotFound, Detail: tc.Team + "/" + tc.InstanceType + "/" + tc.Env})
		return
	}
	principal, ok := c.tables.Principals.Principal(tc.Env, tc.Group)
	if !ok {
		c.fail(log, tc, &core.LookupError{Message: core.MsgUserNotFound, Detail: tc.Group})
		return
	}
	credential, ok := c.tables.Credentials.Credential(principal.User)
	if !ok {
		c.fail(log, tc, &core.LookupError{Message: core.MsgCredentialNotFound, Detail: principal.User})
		return
	}

	query := c.resolver.Substitute(tc.QueryText)
	c.recorder.Begin(tc, query)

	// one deadline covers connecting and executing
	caseCtx := ctx
	if c.cfg.CaseTimeout > 0 {
		var cancel context.CancelFunc
		caseCtx, cancel = context.WithTimeout(ctx, c.cfg.CaseTimeout)
		defer cancel()
	}

	var outcome core.Outcome
	conn, err := c.pool.Acquire(caseCtx, host, principal.User, credential)
	if err != nil {
		if caseCtx.Err() != nil {
			c.abort(ctx, log, tc, err)
			return
		}
		outcome = core.Outcome{Status: core.StatusError, ErrorMessage: err.Error()}
		log.Error("acquire connection failed", zap.String("host", host), zap.String("user", principal.User), zap.Error(err))
	} else {
		outcome = c.runner.Run(caseCtx, conn, query)
		if outcome.Aborted {
			c.abort(ctx, log, tc, errors.New(outcome.ErrorMessage))
			return
		}
	}

	result, err := c.recorder.RecordOutcome(tc, outcome)
	if err != nil {
		log.Error("record outcome failed", zap.Error(err))
		return
	}
	log.Info("case finished",
		zap.String("sql", query),
		zap.String("status", string(outcome.Status)),
		zap.String("response", outcome.Response),
		zap.String("result", string(result)))
}

// abort fails a case cut off by its deadline or by run cancellation.
func (c *Controller) abort(ctx context.Context, log *zap.Logger, tc *core.TestCase, cause error) {
	msg := core.MsgRunCanceled
	if ctx.Err() == nil {
		msg = (&core.TimeoutError{Timeout: c.cfg.CaseTimeout}).Error()
	}
	log.Error("case aborted", zap.String("reason", msg), zap.Error(cause))
	if err := c.recorder.RecordFailure(tc, msg); err != nil {
		log.Error("record failure failed", zap.Error(err))
	}
}

// fail marks a case that never reached the engine.
func (c *Controller) fail(log *zap.Logger, tc *core.TestCase, cause *core.LookupError) {
	log.Error("case not executed", zap.Error(cause))
	if err := c.recorder.RecordFailure(tc, cause.Message); err != nil {
		log.Error("record failure failed", zap.Error(err))
	}
}
