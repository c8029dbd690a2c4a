package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/robert-at-pretension-io/silver-run/internal/cli"
	"github.com/robert-at-pretension-io/silver-run/internal/facts"
	"github.com/robert-at-pretension-io/silver-run/internal/logging"
	"github.com/robert-at-pretension-io/silver-run/internal/orchestrator"
)

func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(stdout, stderr io.Writer, args []string) error {
	opts, shouldExit, err := cli.ParsePlan(args, stderr)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := logging.New(opts.LogLevel, opts.LogFormat, stderr)
	planned, err := orchestrator.New(stdout, stderr, logger).Plan(opts.Options)
	if err != nil {
		return err
	}

	full := facts.BuildTables(planned.Sources, planned.Plan)
	tables := full
	stages := stageSet(opts.Stages)
	if stages != nil {
		tables = facts.FilterTablesByStages(full, stages)
	}

	out := stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if opts.Format == "json" {
		if err := writeJSON(out, tables); err != nil {
			return fmt.Errorf("writing plan: %w", err)
		}
	} else {
		for _, row := range tables.Commands {
			fmt.Fprintln(out, row.Line)
		}
	}

	if opts.DeltaFrom != "" {
		prev, err := readTables(opts.DeltaFrom)
		if err != nil {
			return fmt.Errorf("reading delta-from: %w", err)
		}
		delta := facts.ComputeDelta(prev, full)
		if stages != nil {
			delta = facts.FilterDeltaByStages(delta, stages)
		}
		f, err := os.Create(opts.DeltaOut)
		if err != nil {
			return fmt.Errorf("writing delta: %w", err)
		}
		defer func() { _ = f.Close() }()
		if err := writeJSON(f, delta); err != nil {
			return fmt.Errorf("writing delta: %w", err)
		}
	}
	return nil
}

func stageSet(stages []string) map[string]bool {
	if len(stages) == 0 {
		return nil
	}
	set := make(map[string]bool, len(stages))
	for _, st := range stages {
		set[st] = true
	}
	return set
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
