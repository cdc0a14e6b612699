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
// Package main contains the cfssim command-line tool: "run" simulates an
// input file and prints its trace; "serve" starts the HTTP service.
package main

import (
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thi2351/cfssim/analysis"
	"github.com/thi2351/cfssim/config"
	"github.com/thi2351/cfssim/loader"
	"github.com/thi2351/cfssim/server"
	"github.com/thi2351/cfssim/sim"
	"github.com/thi2351/cfssim/storage"
	"github.com/thi2351/cfssim/trace"
)

var (
	showMetrics bool
	verify      bool

	port       int
	cacheSize  int
	configPath string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cfssim",
		Short:         "Deterministic CFS scheduling simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().AddGoFlagSet(goflag.CommandLine)

	runCmd := &cobra.Command{
		Use:   "run <input-file>",
		Short: "Simulate an input file and print the scheduling trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(args[0])
		},
	}
	runCmd.Flags().BoolVar(&showMetrics, "metrics", false, "print per-CPU and per-process metrics after the trace")
	runCmd.Flags().BoolVar(&verify, "verify", false, "check engine invariants after every event")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve simulations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd)
		},
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides the config file)")
	serveCmd.Flags().IntVar(&cacheSize, "cache_size", 0, "maximum runs kept in memory (overrides the config file)")
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(runCmd, serveCmd)
	return root
}

func runSimulation(path string) error {
	in, err := loader.LoadFile(path)
	if err != nil {
		return err
	}
	emitter := &trace.SliceEmitter{}
	simulator, err := sim.New(in.Processes, in.NumCPU,
		sim.WithEmitter(emitter), sim.CheckInvariants(verify))
	if err != nil {
		return err
	}
	if _, err := simulator.Run(); err != nil {
		return err
	}
	for _, r := range emitter.Records() {
		fmt.Println(r)
	}
	if showMetrics {
		return printMetrics(emitter.Records(), in.NumCPU)
	}
	return nil
}

func printMetrics(records []trace.Record, numCPU int) error {
	report, err := analysis.NewReport(records, numCPU)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "CPU\tBUSY\tDISPATCHES\tUTILIZATION")
	for _, m := range report.PerCPU {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.1f%%\n", m.CPU, m.BusyTime, m.Dispatches, m.Utilization*100)
	}
	fmt.Fprintln(tw, "\nPID\tRUN\tWAIT\tDISPATCHES\tPREEMPTIONS\tFINISH")
	for _, m := range report.PerProcess {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n", m.PID, m.RunTime, m.WaitTime, m.Dispatches, m.Preemptions, m.FinishTime)
	}
	return tw.Flush()
}

func serve(cmd *cobra.Command) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("cache_size") {
		cfg.CacheSize = cacheSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	store, err := storage.NewRunStore(cfg.CacheSize)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(store).ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
