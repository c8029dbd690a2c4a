// Package verify runs the SILVER verifier on a synthesized netlist.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrVerifierFailed means the verifier could not start or exited non-zero.
var ErrVerifierFailed = errors.New("verifier failed")

// Options describe one verifier invocation.
type Options struct {
	Binary  string
	Netlist string
	Top     string

	// InsFile is the instruction file. Defaults to <netlist dir>/<top>.nl.
	InsFile string

	// LibFile is the cell description file. Empty omits --verilog-libfile.
	LibFile string

	Verbose bool
}

// InsFilePath returns the instruction file the verifier will read.
func (o Options) InsFilePath() string {
	if o.InsFile != "" {
		return o.InsFile
	}
	return filepath.Join(filepath.Dir(o.Netlist), o.Top+".nl")
}

// Command returns the verifier argv.
func Command(opts Options) []string {
	argv := []string{
		opts.Binary,
		"--verilog", "1",
		"--verilog-design_file", opts.Netlist,
		"--verilog-module_name", opts.Top,
		"--insfile", opts.InsFilePath(),
	}
	if opts.LibFile != "" {
		argv = append(argv, "--verilog-libfile", opts.LibFile)
	}
	if opts.Verbose {
		argv = append(argv, "--verbose", "1")
	}
	return argv
}

// Verifier runs the verifier synchronously in Dir.
type Verifier struct {
	Options

	Dir    string
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the verifier and waits for it. Its output is passed through.
func (v *Verifier) Run(ctx context.Context) error {
	argv := Command(v.Options)
	if v.Logger != nil {
		v.Logger.Info("running verifier", "command", strings.Join(argv, " "), "dir", v.Dir)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = v.Dir
	cmd.Stdout = v.Stdout
	cmd.Stderr = v.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %w", ErrVerifierFailed, err)
	}
	return nil
}
