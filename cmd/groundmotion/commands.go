package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vjranagit/groundmotion/pkg/api"
	"github.com/vjranagit/groundmotion/pkg/integrator"
	"github.com/vjranagit/groundmotion/pkg/motion"
	"github.com/vjranagit/groundmotion/pkg/series"
)

type importOptions struct {
	accelFile       string
	velFile         string
	dispFile        string
	stepIncrement   float64
	startTime       float64
	prependZero     bool
	scaleFactor     float64
	integrator      string
	integrationStep float64
	labels          map[string]string
}

func newImportCmd() *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import NAME",
		Short: "Import a record from flat sample files",
		Long: `Import reads whitespace separated samples from one to three files and
stores them as a record. Velocity and displacement not given are derived
from acceleration by integration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.accelFile, "accel", "", "acceleration sample file")
	f.StringVar(&opts.velFile, "vel", "", "velocity sample file")
	f.StringVar(&opts.dispFile, "disp", "", "displacement sample file")
	f.Float64Var(&opts.stepIncrement, "dt", 0, "time between samples (default from config)")
	f.Float64Var(&opts.startTime, "start-time", 0, "time of the first sample")
	f.BoolVar(&opts.prependZero, "prepend-zero", false, "insert a zero sample so the motion starts at rest")
	f.Float64Var(&opts.scaleFactor, "factor", 0, "scale factor applied to every query (default from config)")
	f.StringVar(&opts.integrator, "integrator", "", "trapezoidal or simpson (default from config)")
	f.Float64Var(&opts.integrationStep, "integration-step", -1, "integration grid spacing, 0 for the sample spacing (default from config)")
	f.StringToStringVar(&opts.labels, "label", nil, "record labels as key=value")

	return cmd
}

func runImport(cmd *cobra.Command, name string, opts *importOptions) error {
	if opts.accelFile == "" && opts.velFile == "" && opts.dispFile == "" {
		return errors.New("at least one of --accel, --vel or --disp is required")
	}

	step := opts.stepIncrement
	if step <= 0 {
		step = cfg.Motion.StepIncrement
	}
	factor := opts.scaleFactor
	if factor == 0 {
		factor = cfg.Motion.ScaleFactor
	}
	intName := opts.integrator
	if intName == "" {
		intName = cfg.Motion.Integrator
	}
	intStep := opts.integrationStep
	if intStep < 0 {
		intStep = cfg.Motion.IntegrationStep
	}

	in, err := integrator.New(intName)
	if err != nil {
		return err
	}

	seriesOpts := []series.Option{
		series.WithStepIncrement(step),
		series.WithStartTime(opts.startTime),
		series.WithPrependZero(opts.prependZero),
		series.WithLogger(logger),
	}

	recOpts := []motion.Option{
		motion.WithIntegrator(in),
		motion.WithIntegrationStep(intStep),
		motion.WithScaleFactor(factor),
		motion.WithLogger(logger),
	}

	files := []struct {
		path   string
		tag    int
		option func(series.TimeSeries) motion.Option
	}{
		{opts.accelFile, 1, motion.WithAcceleration},
		{opts.velFile, 2, motion.WithVelocity},
		{opts.dispFile, 3, motion.WithDisplacement},
	}
	for _, file := range files {
		if file.path == "" {
			continue
		}
		s, err := series.LoadSampled(file.tag, file.path, seriesOpts...)
		if err != nil {
			// an empty series still makes a valid record
			logger.Warn("continuing with empty series", "path", file.path, "error", err)
		}
		recOpts = append(recOpts, file.option(s))
	}

	rec := motion.New(recOpts...)

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveRecord(cmd.Context(), name, opts.labels, rec); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %s: duration %.4g s, PGA %.6g, PGV %.6g, PGD %.6g\n",
		name, rec.Duration(), rec.PeakAcceleration(), rec.PeakVelocity(), rec.PeakDisplacement())
	return nil
}

func newListCmd() *cobra.Command {
	var labels map[string]string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.FindRecords(cmd.Context(), labels)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSERIES\tDURATION\tPGA\tINTEGRATOR\tLABELS")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%.4g\t%.6g\t%s\t%s\n",
					info.Name, seriesFlags(info.HasAcceleration, info.HasVelocity, info.HasDisplacement),
					info.Duration, info.PeakAcceleration, info.Integrator, formatLabels(info.Labels))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringToStringVar(&labels, "label", nil, "filter by label key=value")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var (
		times          []float64
		from, to, step float64
	)

	cmd := &cobra.Command{
		Use:   "query NAME",
		Short: "Print displacement, velocity and acceleration at given times",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if step > 0 {
				for tm := from; tm <= to+step*1e-9; tm += step {
					times = append(times, tm)
				}
			}
			if len(times) == 0 {
				return errors.New("give --time or --from/--to/--step")
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.LoadRecord(cmd.Context(), args[0], motion.WithLogger(logger))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tDISP\tVEL\tACCEL")
			for _, tm := range times {
				dva := rec.DispVelAccelAt(tm)
				fmt.Fprintf(w, "%.6g\t%.6g\t%.6g\t%.6g\n", tm, dva[0], dva[1], dva[2])
			}
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.Float64SliceVarP(&times, "time", "t", nil, "query times")
	f.Float64Var(&from, "from", 0, "range start")
	f.Float64Var(&to, "to", 0, "range end")
	f.Float64Var(&step, "step", 0, "range step")

	return cmd
}

func newPeaksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peaks NAME",
		Short: "Print peak ground acceleration, velocity and displacement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.LoadRecord(cmd.Context(), args[0], motion.WithLogger(logger))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "duration: %.6g\n", rec.Duration())
			fmt.Fprintf(out, "PGA:      %.6g\n", rec.PeakAcceleration())
			fmt.Fprintf(out, "PGV:      %.6g\n", rec.PeakVelocity())
			fmt.Fprintf(out, "PGD:      %.6g\n", rec.PeakDisplacement())
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			return store.DeleteRecord(cmd.Context(), args[0])
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP query API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Info("starting", "version", version, "listen_addr", cfg.Server.ListenAddr,
				"storage_path", cfg.Storage.Path, "compression_level", cfg.Storage.CompressionLevel)

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			server := api.NewServer(cfg.Server.ListenAddr, store, logger)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("API server listening", "addr", cfg.Server.ListenAddr)
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-sigChan:
				logger.Info("shutdown signal received, stopping server")
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
			defer cancel()

			if err := server.Stop(ctx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}

			logger.Info("server stopped")
			return nil
		},
	}
}

func seriesFlags(accel, vel, disp bool) string {
	flags := []byte("---")
	if accel {
		flags[0] = 'A'
	}
	if vel {
		flags[1] = 'V'
	}
	if disp {
		flags[2] = 'D'
	}
	return string(flags)
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + labels[k]
	}
	return strings.Join(parts, ",")
}
