// Command regolith runs SPH and N-body collision simulations described by a
// setup file, dumps the settings reference and plots columns of saved
// snapshots.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/regolith-sim/regolith/internal/config"
	"github.com/regolith-sim/regolith/internal/paths"
	"github.com/regolith-sim/regolith/internal/runner"
	"github.com/regolith-sim/regolith/internal/settings"
)

const version = "0.1.0"

// Exit codes distinguish a bad setup from an io problem so wrapper scripts
// can retry the right thing.
const (
	exitFailure      = 1
	exitInvalidSetup = 2
	exitIO           = 3
)

var (
	resumeFrom string

	plotColumn string
	plotHeight int
	plotWidth  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "regolith",
		Short:         "SPH and N-body collision simulations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run [setup file]",
		Short: "run the simulation described by a setup file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&resumeFrom, "resume", "", "state file to continue from")

	defaultsCmd := &cobra.Command{
		Use:   "defaults",
		Short: "print all settings with their defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printDefaults(cmd.OutOrStdout())
		},
	}

	plotCmd := &cobra.Command{
		Use:   "plot [snapshot file]",
		Short: "plot a column of a saved text snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  plotSnapshot,
	}
	plotCmd.Flags().StringVar(&plotColumn, "column", "rho", "column header to plot")
	plotCmd.Flags().IntVar(&plotHeight, "height", 15, "graph height")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "graph width")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "regolith "+version)
		},
	}

	rootCmd.AddCommand(runCmd, defaultsCmd, plotCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, runner.ErrSetup),
		errors.Is(err, runner.ErrUnbound),
		errors.Is(err, config.ErrParse),
		errors.Is(err, config.ErrNotFound),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, settings.ErrInvalidValue):
		return exitInvalidSetup
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return exitIO
	default:
		return exitFailure
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	setup, err := runner.LoadSetup(paths.New(args[0]))
	if err != nil {
		return err
	}
	if resumeFrom != "" {
		setup.Resume = paths.New(resumeFrom)
	}
	sink, err := setup.Graph()
	if err != nil {
		return err
	}

	// Ctrl-C requests a cooperative abort; the loop writes a final
	// snapshot before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cb := &runner.Callbacks{
		ShouldAbort: func() bool { return ctx.Err() != nil },
	}
	if _, err := sink.Prepare(setup.Run, cb); err != nil {
		if errors.Is(err, runner.ErrAborted) {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted, final state written")
			return nil
		}
		return err
	}
	return nil
}

func printDefaults(out io.Writer) error {
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN SETTINGS")
	runTable := settings.RunTable()
	for _, key := range runTable.Keys() {
		e, _ := runTable.Entry(key)
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, settings.FormatValue(e.Default), e.Desc)
	}
	fmt.Fprintln(w, "\nBODY SETTINGS")
	bodyTable := settings.BodyTable()
	for _, key := range bodyTable.Keys() {
		e, _ := bodyTable.Entry(key)
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, settings.FormatValue(e.Default), e.Desc)
	}
	return w.Flush()
}

func plotSnapshot(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var headers []string
	var data []float64
	col := -1
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			fields := strings.Split(strings.TrimSpace(strings.TrimPrefix(line, "#")), "\t")
			for i, h := range fields {
				if h == plotColumn {
					headers = fields
					col = i
				}
			}
			continue
		}
		if col < 0 {
			continue
		}
		fields := strings.Split(line, "\t")
		if col >= len(fields) {
			return fmt.Errorf("row has %d columns, header %d", len(fields), len(headers))
		}
		x, err := strconv.ParseFloat(fields[col], 64)
		if err != nil {
			return fmt.Errorf("column %q: %w", plotColumn, err)
		}
		data = append(data, x)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if col < 0 {
		return fmt.Errorf("column %q not found in %s", plotColumn, args[0])
	}
	if len(data) == 0 {
		return fmt.Errorf("no rows in %s", args[0])
	}

	graph := asciigraph.Plot(data,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(fmt.Sprintf("%s over %d particles", plotColumn, len(data))))
	fmt.Fprintln(cmd.OutOrStdout(), graph)
	return nil
}
