//
// Copyright 2019 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS-IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
//
// Package server exposes the simulator over HTTP.  A posted input file is
// simulated immediately; the completed run is cached and its trace and
// metrics served from the cache.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/golang/glog"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thi2351/cfssim/analysis"
	"github.com/thi2351/cfssim/loader"
	"github.com/thi2351/cfssim/sim"
	"github.com/thi2351/cfssim/storage"
	"github.com/thi2351/cfssim/trace"
)

// Server answers simulation requests over HTTP.
type Server struct {
	store *storage.RunStore
}

// New returns a Server backed by store.
func New(store *storage.RunStore) *Server {
	return &Server{store: store}
}

// Router returns the server's route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/run", s.handleCreateRun).Methods(http.MethodPost)
	r.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/run/{id}/trace", s.handleTrace).Methods(http.MethodGet)
	r.HandleFunc("/run/{id}/metrics", s.handleMetrics).Methods(http.MethodGet)
	return r
}

// runSummary is the response to a run creation or listing entry.
type runSummary struct {
	ID         string          `json:"id"`
	NumCPU     int             `json:"numCpu"`
	Processes  int             `json:"processes"`
	FinishTime trace.Timestamp `json:"finishTime"`
}

func summarize(run *storage.Run) runSummary {
	return runSummary{
		ID:         run.ID,
		NumCPU:     run.NumCPU,
		Processes:  len(run.Processes),
		FinishTime: run.FinishTime,
	}
}

// handleCreateRun reads an input file from the request body, simulates it,
// stores the completed run, and responds with its summary.
func (s *Server) handleCreateRun(w http.ResponseWriter, req *http.Request) {
	in, err := loader.Load(req.Body)
	if err != nil {
		httpError(w, err)
		return
	}
	run, err := Simulate(in)
	if err != nil {
		httpError(w, err)
		return
	}
	s.store.Put(run)
	writeJSON(w, summarize(run))
}

func (s *Server) handleListRuns(w http.ResponseWriter, req *http.Request) {
	summaries := []runSummary{}
	for _, id := range s.store.IDs() {
		run, err := s.store.Get(id)
		if err != nil {
			continue
		}
		summaries = append(summaries, summarize(run))
	}
	writeJSON(w, summaries)
}

func (s *Server) handleTrace(w http.ResponseWriter, req *http.Request) {
	run, err := s.store.Get(mux.Vars(req)["id"])
	if err != nil {
		httpError(w, err)
		return
	}
	if req.URL.Query().Get("format") == "text" {
		var b strings.Builder
		for _, r := range run.Records {
			fmt.Fprintln(&b, r)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := fmt.Fprint(w, b.String()); err != nil {
			log.Errorf("failed to write trace response: %s", err)
		}
		return
	}
	writeJSON(w, run.Records)
}

func (s *Server) handleMetrics(w http.ResponseWriter, req *http.Request) {
	run, err := s.store.Get(mux.Vars(req)["id"])
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, run.Report)
}

// Simulate runs a parsed input to completion and packages the result as a
// storable run.
func Simulate(in *loader.Input) (*storage.Run, error) {
	emitter := &trace.SliceEmitter{}
	simulator, err := sim.New(in.Processes, in.NumCPU, sim.WithEmitter(emitter))
	if err != nil {
		return nil, err
	}
	result, err := simulator.Run()
	if err != nil {
		return nil, err
	}
	report, err := analysis.NewReport(emitter.Records(), in.NumCPU)
	if err != nil {
		return nil, err
	}
	return &storage.Run{
		NumCPU:     in.NumCPU,
		Processes:  in.Processes,
		FinishTime: result.FinishTime,
		Records:    emitter.Records(),
		Report:     report,
	}, nil
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Infof("serving on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.Errorf("failed to encode response: %s", err)
	}
}

// httpError maps a status error onto the matching HTTP response code.
func httpError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch status.Code(err) {
	case codes.InvalidArgument:
		code = http.StatusBadRequest
	case codes.NotFound:
		code = http.StatusNotFound
	}
	http.Error(w, err.Error(), code)
}
