// =============================================================================
// silver-run - Main Entry Point
// =============================================================================
//
// Synthesizes hardware sources into a gate-level netlist and checks it with the
// SILVER verifier.
//
// THE PIPELINE:
//   1. Classifier maps each source to its reader (Verilog, SystemVerilog, VHDL)
//   2. Builder assembles the ordered Yosys script (read → map → export)
//   3. Rego rules check the script ordering before anything runs
//   4. Executor runs Yosys in silver_run_<top>/ unless the netlist is fresh
//   5. Fixer removes the port/net duplicates Yosys writes into the netlist
//   6. SILVER verifies the netlist
//
// WHEN A RUN FAILS:
//   Look at silver_run_<top>/yosys_script.ys and yosys.log before the netlist.
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/robert-at-pretension-io/silver-run/internal/cli"
	"github.com/robert-at-pretension-io/silver-run/internal/config"
	"github.com/robert-at-pretension-io/silver-run/internal/logging"
	"github.com/robert-at-pretension-io/silver-run/internal/orchestrator"
)

func main() {
	if err := run(os.Stdout, os.Stderr, os.Stdin, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(stdout, stderr io.Writer, stdin io.Reader, args []string) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(stdout, stdin)
	}

	opts, shouldExit, err := cli.Parse(args, stderr)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := logging.New(opts.LogLevel, opts.LogFormat, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := orchestrator.New(stdout, stderr, logger).Run(ctx, *opts)
	if err != nil {
		return err
	}
	logger.Info("done",
		"run_dir", out.RunDir,
		"rebuilt", out.Synthesis.Rebuilt,
		"reason", out.Synthesis.Reason,
		"verified", out.Verified)
	return nil
}

func runInit(stdout io.Writer, stdin io.Reader) error {
	configPath := "silver_run.json"

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(stdout, "Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Fscanln(stdin, &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("creating config: %w", err)
	}

	fmt.Fprintf(stdout, "Created %s\n", configPath)
	fmt.Fprintln(stdout, "\nEdit this file to configure:")
	fmt.Fprintln(stdout, "  - SILVER root (or set SILVER_ROOT)")
	fmt.Fprintln(stdout, "  - Optimization mode and SystemVerilog front end")
	fmt.Fprintln(stdout, "  - Top-level parameters and defines")
	return nil
}
