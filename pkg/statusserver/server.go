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

package statusserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/pingcap/sqlaccept/pkg/core"
)

// Source is the live run being served.
type Source interface {
	RunID() string
	Env() string
	StateName() string
	Summary() core.RunSummary
	Snapshot() []*core.TestCase
}

// Status is the body of /api/status.
type Status struct {
	RunID      string          `json:"run_id"`
	Env        string          `json:"env"`
	State      string          `json:"state"`
	Summary    core.RunSummary `json:"summary"`
	Unexecuted int             `json:"unexecuted"`
}

// Server exposes the progress of a run over HTTP.
type Server struct {
	source Source

	sync.Mutex
	srv  *http.Server
	addr string
	done chan struct{}
}

// New creates a Server for source.
func New(source Source) *Server {
	return &Server{source: source}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.status).Methods("GET")
	r.HandleFunc("/api/cases", s.cases).Methods("GET")
	r.HandleFunc("/api/cases/{id}", s.caseByID).Methods("GET")
	r.HandleFunc("/", s.index).Methods("GET")
	return r
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Annotatef(err, "listen %s", addr)
	}
	s.Lock()
	defer s.Unlock()
	s.addr = l.Addr().String()
	s.done = make(chan struct{})
	s.srv = &http.Server{
		Handler:      s.Handler(),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			zap.L().Error("status server stopped", zap.Error(err))
		}
	}(s.srv, s.done)
	zap.L().Info("status server started", zap.String("addr", s.addr))
	return nil
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	s.Lock()
	defer s.Unlock()
	return s.addr
}

// Shutdown stops the server and waits for the serve loop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Lock()
	srv, done := s.srv, s.done
	s.srv = nil
	s.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	return errors.Trace(err)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	sum := s.source.Summary()
	okJSON(w, Status{
		RunID:      s.source.RunID(),
		Env:        s.source.Env(),
		State:      s.source.StateName(),
		Summary:    sum,
		Unexecuted: sum.Unexecuted(),
	})
}

func (s *Server) cases(w http.ResponseWriter, r *http.Request) {
	var (
		team   = r.URL.Query().Get("team")
		result = r.URL.Query().Get("result")
		out    = []*core.TestCase{}
	)
	for _, c := range s.source.Snapshot() {
		if team != "" && c.Team != team {
			continue
		}
		if result != "" && string(c.Result) != result {
			continue
		}
		out = append(out, c)
	}
	okJSON(w, out)
}

func (s *Server) caseByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	for _, c := range s.source.Snapshot() {
		if c.ID == id {
			okJSON(w, c)
			return
		}
	}
	notFound(w, errors.NotFoundf("case %s", id))
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	sum := s.source.Summary()
	ok(w, fmt.Sprintf("run %s [%s] env %s: total %d, executed %d, passed %d, failed %d\n",
		s.source.RunID(), s.source.StateName(), s.source.Env(),
		sum.Total, sum.Executed, sum.Passed, sum.Failed))
}

func ok(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, msg)
}

func okJSON(w http.ResponseWriter, a interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(a)
}

func notFound(w http.ResponseWriter, err error) {
	zap.L().Debug("request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusNotFound)
}
