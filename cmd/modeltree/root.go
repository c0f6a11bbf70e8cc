// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/modeltree/pkg/logging"
	"github.com/AleutianAI/modeltree/pkg/ux"
	"github.com/AleutianAI/modeltree/services/modeltree/config"
	"github.com/AleutianAI/modeltree/services/modeltree/mech"
	"github.com/AleutianAI/modeltree/services/modeltree/telemetry"
	"github.com/AleutianAI/modeltree/services/modeltree/tree"
)

var version = "0.1.0"

// app holds what every command needs once flags are parsed.
type app struct {
	configPath string
	outputMode string
	logLevel   string

	cfg      config.Config
	logger   *logging.Logger
	printer  *ux.Printer
	classes  *tree.Registry
	shutdown func(context.Context) error
}

// run builds the command tree, executes args and releases resources.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{classes: mech.NewClasses()}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.close()
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "modeltree",
		Short:         "Work with hierarchical model files",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVarP(&a.outputMode, "output", "o", "", "output mode: rich, plain or machine")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newFmtCmd(a),
		newCheckCmd(a),
		newTreeCmd(a),
		newDepsCmd(a),
		newWatchCmd(a),
		newCheckpointCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger, printer and telemetry.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	lc := cfg.Logging.LoggerConfig("modeltree")
	lc.Output = cmd.ErrOrStderr()
	a.logger = logging.New(lc)

	mode, err := a.mode(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	a.printer = ux.NewPrinter(cmd.OutOrStdout(), mode)

	shutdown, err := telemetry.Init(cmd.Context(), cfg.Telemetry.SDKConfig("modeltree", version))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) mode(out io.Writer) (ux.Mode, error) {
	if a.outputMode != "" {
		return ux.ParseMode(a.outputMode)
	}
	if f, ok := out.(*os.File); ok {
		return ux.DetectMode(f), nil
	}
	return ux.ModePlain, nil
}

func (a *app) close() {
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil && a.logger != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}
	if a.logger != nil {
		a.logger.Close()
	}
}
