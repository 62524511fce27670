package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/config"
	"github.com/quantfx/fxbacktester/data"
	"github.com/quantfx/fxbacktester/engine"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/base"
	"github.com/quantfx/fxbacktester/eventhandlers/statistics"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/report"
)

const dateLayout = "2006-01-02"

func main() {
	app := &cli.App{
		Name:  "fxbacktester",
		Usage: "event driven historical risk backtester",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "auth", Usage: "credentials file for remote data sources"},
			&cli.StringFlag{Name: "minio", Usage: "minio endpoint", EnvVars: []string{"BUCKET_HOST"}},
			&cli.StringFlag{Name: "dataserver", Usage: "dataserver endpoint", EnvVars: []string{"DATASERVER_HOST"}},
			&cli.IntFlag{Name: "cores", Usage: "worker count, defaults to all cores", EnvVars: []string{"BACKTESTING_CORES"}},
			&cli.StringFlag{Name: "filesystem", Value: "local", Usage: "data source, local or s3"},
			&cli.StringFlag{Name: "bucket", Usage: "bucket holding historical data", EnvVars: []string{"BUCKET_NAME"}},
			&cli.StringFlag{Name: "scenario_path", Value: ".", Usage: "directory holding scenario documents"},
			&cli.StringFlag{Name: "scenario", Usage: "scenario name, resolves <scenario_path>/<scenario>/ documents"},
			&cli.StringFlag{Name: "pipeline", Usage: "pipeline document path, overrides --scenario"},
			&cli.StringFlag{Name: "simulations_config", Usage: "simulations document path, overrides --scenario"},
			&cli.StringFlag{Name: "output_config", Usage: "output document path, overrides --scenario"},
			&cli.StringFlag{Name: "target_account", Usage: "target accounts csv path"},
			&cli.StringFlag{Name: "start_date", Usage: "first trading session, YYYY-MM-DD"},
			&cli.StringFlag{Name: "end_date", Usage: "last trading session, YYYY-MM-DD"},
			&cli.IntFlag{Name: "batch", Usage: "plans per checkpoint batch"},
			&cli.StringFlag{Name: "sims", Usage: "comma separated simulation labels to run"},
			&cli.StringFlag{Name: "log_level", Value: "info", EnvVars: []string{"BACKTESTING_LOG_LEVEL"}},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger, err := buildLogger(c.String("log_level"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if fs := c.String("filesystem"); fs != "local" {
		logger.Warn("remote filesystems resolve to the local loader in this build",
			zap.String("filesystem", fs), zap.String("bucket", c.String("bucket")))
	}

	scn, err := loadScenario(c)
	if err != nil {
		return err
	}
	var targets []base.TargetAccount
	targetsPath := c.String("target_account")
	if targetsPath != "" {
		if targets, err = config.ReadTargetAccounts(targetsPath); err != nil {
			return err
		}
	}

	var only []string
	if s := c.String("sims"); s != "" {
		only = strings.Split(s, ",")
	}
	plans, err := engine.BuildPlans(scn, targets, only)
	if err != nil {
		return err
	}
	logger.Info("plans built", zap.Int("count", len(plans)))

	events, err := loadEvents(c, &scn.Pipeline)
	if err != nil {
		return err
	}
	logger.Info("event stream built", zap.Int("events", len(events)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers := c.Int("cores")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	writer := report.NewWriter(common.RealClock{}, scn.Output.EventFeatures)

	failed := 0
	_, err = engine.RunPlans(ctx, plans, engine.RunSettings{
		Workers:        workers,
		BatchSize:      c.Int("batch"),
		MatchingEngine: scn.Pipeline.MatchingEngine,
		Targets:        targets,
		Events:         events,
		Logger:         logger,
		ShowProgress:   true,
		OnBatch: func(batch []engine.Result) error {
			for _, res := range batch {
				if res.Err != nil {
					failed++
					logger.Error("plan failed",
						zap.String("plan", res.Plan.Name()),
						zap.Uint64("hash", res.Plan.Hash()),
						zap.Error(res.Err))
					continue
				}
				if err := writeResult(writer, &scn.Output, res); err != nil {
					return err
				}
				logger.Info("plan summary", summaryFields(res, scn.Output.Metrics)...)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d plans failed", failed, len(plans))
	}
	return nil
}

func loadScenario(c *cli.Context) (*config.Scenario, error) {
	pipelinePath := c.String("pipeline")
	simsPath := c.String("simulations_config")
	outputPath := c.String("output_config")
	if name := c.String("scenario"); name != "" {
		dir := filepath.Join(c.String("scenario_path"), name)
		if pipelinePath == "" {
			pipelinePath = filepath.Join(dir, "pipeline.yaml")
		}
		if simsPath == "" {
			simsPath = filepath.Join(dir, "simulations.yaml")
		}
		if outputPath == "" {
			outputPath = filepath.Join(dir, "output.yaml")
		}
	}

	pipeline, err := config.ReadPipeline(pipelinePath)
	if err != nil {
		return nil, err
	}
	sims, err := config.ReadSimulations(simsPath)
	if err != nil {
		return nil, err
	}
	output, err := config.ReadOutput(outputPath)
	if err != nil {
		return nil, err
	}
	return &config.Scenario{Pipeline: *pipeline, Simulations: sims, Output: *output}, nil
}

// loadEvents builds the concatenated event stream of every session in the
// requested date range
func loadEvents(c *cli.Context, p *config.Pipeline) ([]event.Event, error) {
	start, err := time.Parse(dateLayout, c.String("start_date"))
	if err != nil {
		return nil, fmt.Errorf("%w: start_date: %v", common.ErrConfig, err)
	}
	end, err := time.Parse(dateLayout, c.String("end_date"))
	if err != nil {
		return nil, fmt.Errorf("%w: end_date: %v", common.ErrConfig, err)
	}

	builder, err := data.NewBuilder(data.StreamConfig{
		Type:           p.EventStream.Type,
		Cadence:        time.Duration(p.EventStream.CadenceSeconds) * time.Second,
		SampleRate:     p.EventStream.SampleRate,
		Seed:           p.EventStream.Seed,
		Timezone:       p.EventStream.Timezone,
		CloseTime:      p.EventStream.CloseTime,
		ExclusionStart: p.EventStream.ExclusionStart,
		ExclusionEnd:   p.EventStream.ExclusionEnd,
		GFDWindow:      time.Duration(p.EventStream.GFDMinutes) * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	ref := data.InstrumentRef{
		Instrument:     p.Instrument,
		UnitPrice:      p.InstrumentUnitPrice,
		Currency:       p.InstrumentCurrency,
		RateToUSD:      p.InstrumentRateToUSD,
		PriceIncrement: int64(p.InstrumentIncrement * float64(common.PriceScale)),
	}

	var out []event.Event
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		trades, err := data.LoadTrades(sessionPath(p.TradesPath, day))
		if err != nil {
			return nil, err
		}
		ticks, err := data.LoadTicks(sessionPath(p.TicksPath, day))
		if err != nil {
			return nil, err
		}
		var migrations []event.Event
		if p.AccountMigrationsPath != "" {
			if migrations, err = data.LoadMigrations(sessionPath(p.AccountMigrationsPath, day)); err != nil {
				return nil, err
			}
		}
		session, err := builder.Build(day, ref, trades, ticks, migrations)
		if err != nil {
			return nil, err
		}
		out = append(out, session...)
	}
	return out, nil
}

// sessionPath substitutes the session date into a configured data path
func sessionPath(path string, day time.Time) string {
	return strings.ReplaceAll(path, "{date}", day.Format(dateLayout))
}

// summaryFields selects the summary metrics to log, all of them when the
// output document names none
func summaryFields(res engine.Result, metrics []string) []zap.Field {
	fields := []zap.Field{zap.String("plan", res.Plan.Name())}
	want := func(name string) bool {
		if len(metrics) == 0 {
			return true
		}
		for _, m := range metrics {
			if m == name {
				return true
			}
		}
		return false
	}
	if want("trade_count") {
		fields = append(fields, zap.Int("trade_count", res.Summary.TradeCount))
	}
	if want("realised_pnl") {
		fields = append(fields, zap.String("realised_pnl", res.Summary.RealisedPNL.String()))
	}
	if want("max_drawdown") {
		fields = append(fields, zap.String("max_drawdown", res.Summary.MaxDrawdown.String()))
	}
	if want("win_ratio") {
		fields = append(fields, zap.String("win_ratio", res.Summary.WinRatio.String()))
	}
	return fields
}

func writeResult(writer *report.Writer, out *config.Output, res engine.Result) error {
	records, err := statistics.Resample(res.Records, out.ResampleRule)
	if err != nil {
		return err
	}
	name := res.Plan.Name() + ".csv"
	if out.FilePrefix != "" {
		name = out.FilePrefix + "-" + name
	}
	dest := out.Destination
	if dest == "" {
		dest = "."
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("%w: creating output directory: %v", common.ErrRuntime, err)
	}
	return writer.Write(filepath.Join(dest, name), records, out.Append)
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log_level %q: %v", common.ErrConfig, level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if os.Getenv("BACKTESTING_COLOUR") != "" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}
