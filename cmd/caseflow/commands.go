package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/model"
	"github.com/caseflow/caseflow/pkg/bpmn"
	"github.com/caseflow/caseflow/pkg/config"
	"github.com/caseflow/caseflow/pkg/export"
	"github.com/caseflow/caseflow/pkg/ngram"
	"github.com/caseflow/caseflow/pkg/oracle"
	"github.com/caseflow/caseflow/pkg/parser"
	"github.com/caseflow/caseflow/pkg/reachability"
	"github.com/caseflow/caseflow/pkg/state"
	"github.com/caseflow/caseflow/pkg/telemetry"
	"github.com/caseflow/caseflow/pkg/tui"
	"github.com/caseflow/caseflow/pkg/watch"
)

// inputs bundles everything a reconstruction run needs.
type inputs struct {
	model *bpmn.Model
	graph *reachability.Graph
	log   *model.Log
}

func runReconstruct(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	shutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	if shutdown != nil {
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			shutdown(shutdownCtx)
		}()
	}

	in, err := loadInputs(ctx, cfg)
	if err != nil {
		return err
	}

	if verbose {
		tui.PrintModelInfo(in.model.ActivityCount(), in.model.FlowCount(), in.graph.NodeCount(), in.graph.EdgeCount())
	}

	start := time.Now()
	res, err := computeStates(ctx, cfg, in)
	if err != nil {
		return fmt.Errorf("reconstruction failed: %w", err)
	}
	elapsed := time.Since(start)

	tui.ClearLine()

	if err := writeOutputs(res); err != nil {
		return err
	}

	if outputFile != "" || verbose {
		tui.PrintRunReport(&tui.RunReport{
			RunID:        res.RunID,
			Events:       in.log.Len(),
			CasesSeen:    res.CasesSeen,
			CasesDropped: res.CasesDropped,
			OutputPath:   outputFile,
			Duration:     elapsed,
		})
	}

	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	if outputFile == "" {
		return fmt.Errorf("watch requires --output")
	}

	ctx, cancel := signalContext()
	defer cancel()

	shutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	if shutdown != nil {
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			shutdown(shutdownCtx)
		}()
	}

	// The model and graph are loaded once; only the log is re-read per run.
	mdl, err := bpmn.ParseFile(modelFile)
	if err != nil {
		return err
	}
	graph, err := reachability.ReadFile(graphFile)
	if err != nil {
		return err
	}

	history := watch.NewHistory(0)

	rerun := func(path string) error {
		startedAt := time.Now()
		eventLog, err := parseLog(ctx, cfg, path)
		if err == nil {
			var res *state.Result
			res, err = computeStates(ctx, cfg, &inputs{model: mdl, graph: graph, log: eventLog})
			if err == nil {
				err = writeOutputs(res)
			}
			if err == nil {
				rec := watch.RunRecord{
					RunID:        res.RunID,
					Path:         path,
					StartedAt:    startedAt,
					Duration:     time.Since(startedAt),
					CasesSeen:    res.CasesSeen,
					CasesDropped: res.CasesDropped,
				}
				history.Add(rec)
				tui.PrintWatchEvent(path, &tui.RunReport{
					RunID:     res.RunID,
					CasesSeen: res.CasesSeen,
					Duration:  rec.Duration,
				}, nil)
				return nil
			}
		}
		history.Add(watch.RunRecord{Path: path, StartedAt: startedAt, Duration: time.Since(startedAt), Err: err})
		tui.PrintWatchEvent(path, nil, err)
		return err
	}

	tui.PrintHeader(version)
	fmt.Printf("  Watching %s\n\n", logFile)

	// Initial run so the output exists before the first change.
	if err := rerun(logFile); err != nil && verbose {
		tui.PrintError(err.Error())
	}

	watcher, err := watch.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watcher.OnChange = rerun
	watcher.OnError = func(path string, err error) {
		tui.PrintWatchEvent(path, nil, err)
	}

	if err := watcher.Watch(logFile); err != nil {
		return err
	}

	err = watcher.Run(ctx)
	if err == context.Canceled {
		fmt.Printf("\n  Stopped after %d run(s).\n", history.Len())
		return nil
	}
	return err
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	in, err := loadInputs(ctx, cfg)
	if err != nil {
		return err
	}

	stat, err := os.Stat(logFile)
	if err != nil {
		return err
	}

	ids, groups := in.log.Cases()
	ongoing := 0
	for _, id := range ids {
		for _, ev := range groups[id] {
			if ev.Ongoing() {
				ongoing++
				break
			}
		}
	}

	fmt.Printf("Model:  %s (%d activities, %d flows)\n", modelFile, in.model.ActivityCount(), in.model.FlowCount())
	fmt.Printf("Graph:  %s (%d markings, %d edges)\n", graphFile, in.graph.NodeCount(), in.graph.EdgeCount())
	fmt.Printf("Log:    %s (%s, %s)\n", logFile, humanSize(stat.Size()), detectFormat(logFile, formatFlag))
	fmt.Printf("Events: %d\n", in.log.Len())
	fmt.Printf("Cases:  %d (%d with ongoing activities)\n", len(ids), ongoing)

	return nil
}

// effectiveConfig loads the config files and applies any flags the user set.
func effectiveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	flagOverrides := map[string]*string{
		"delimiter":        &cfg.Log.Delimiter,
		"case-id":          &cfg.Log.CaseIDColumn,
		"activity":         &cfg.Log.ActivityColumn,
		"resource":         &cfg.Log.ResourceColumn,
		"enabled":          &cfg.Log.EnabledColumn,
		"start":            &cfg.Log.StartColumn,
		"end":              &cfg.Log.EndColumn,
		"timestamp-format": &cfg.Log.TimestampFormat,
	}
	flagValues := map[string]string{
		"delimiter":        csvDelimiter,
		"case-id":          csvCaseIDColumn,
		"activity":         csvActivityColumn,
		"resource":         csvResourceColumn,
		"enabled":          csvEnabledColumn,
		"start":            csvStartColumn,
		"end":              csvEndColumn,
		"timestamp-format": csvTimestampFormat,
	}
	for name, dst := range flagOverrides {
		if cmd.Flags().Changed(name) {
			*dst = flagValues[name]
		}
	}

	if cmd.Flags().Changed("ngram-limit") {
		cfg.Matching.NGramSizeLimit = ngramLimit
	}
	if cmd.Flags().Changed("workers") {
		cfg.Compute.Workers = workers
	}
	if cmd.Flags().Changed("otlp-endpoint") {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = otlpEndpoint
	}

	return cfg, nil
}

// initTelemetry sets up the OTLP exporter when telemetry is enabled.
// Returns a nil shutdown func when telemetry is off.
func initTelemetry(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.Telemetry.Enabled {
		return nil, nil
	}
	otlpCfg := telemetry.DefaultOTLPConfig("caseflow")
	otlpCfg.ServiceVersion = version
	otlpCfg.Endpoint = cfg.Telemetry.Endpoint

	exporter := telemetry.NewOTLPExporter(otlpCfg)
	shutdown, err := exporter.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return shutdown, nil
}

func loadInputs(ctx context.Context, cfg *config.Config) (*inputs, error) {
	mdl, err := bpmn.ParseFile(modelFile)
	if err != nil {
		return nil, err
	}
	graph, err := reachability.ReadFile(graphFile)
	if err != nil {
		return nil, err
	}
	eventLog, err := parseLog(ctx, cfg, logFile)
	if err != nil {
		return nil, err
	}
	return &inputs{model: mdl, graph: graph, log: eventLog}, nil
}

func parseLog(ctx context.Context, cfg *config.Config, path string) (*model.Log, error) {
	format := detectFormat(path, formatFlag)
	if format == parser.FormatUnknown {
		return nil, fmt.Errorf("unable to detect log format for %s, please specify with --format", path)
	}

	parserCfg := parser.DefaultConfig()
	parserCfg.CaseIDColumn = cfg.Log.CaseIDColumn
	parserCfg.ActivityColumn = cfg.Log.ActivityColumn
	parserCfg.ResourceColumn = cfg.Log.ResourceColumn
	parserCfg.EnabledColumn = cfg.Log.EnabledColumn
	parserCfg.StartColumn = cfg.Log.StartColumn
	parserCfg.EndColumn = cfg.Log.EndColumn
	parserCfg.TimestampFormat = cfg.Log.TimestampFormat
	if cfg.Log.Delimiter != "" {
		parserCfg.Delimiter = cfg.Log.Delimiter[0]
	}

	p, err := parser.New(format, parserCfg)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return p.Parse(ctx, f)
}

func computeStates(ctx context.Context, cfg *config.Config, in *inputs) (*state.Result, error) {
	matcher := ngram.BuildWithLabels(in.graph, cfg.Matching.NGramSizeLimit, func(taskID string) string {
		if name, ok := in.model.ActivityName(taskID); ok {
			return name
		}
		return taskID
	})

	opts := []state.Option{state.WithWorkers(cfg.Compute.Workers)}
	if verbose {
		ids, _ := in.log.Cases()
		bar := tui.ShowProgress(int64(len(ids)), "Reconstructing")
		opts = append(opts, state.WithProgress(func(done, total int) {
			bar.Set(done)
		}))
	}

	computer := state.NewComputer(in.model, in.graph, matcher, oracle.NewDirectlyFollows(nil), opts...)
	return computer.ComputeCaseStates(ctx, in.log)
}

func writeOutputs(res *state.Result) error {
	if outputFile == "" {
		if err := export.WriteJSON(os.Stdout, res); err != nil {
			return err
		}
	} else {
		if err := export.WriteJSONFile(outputFile, res); err != nil {
			return fmt.Errorf("failed to write %s: %w", outputFile, err)
		}
	}
	if xlsxFile != "" {
		if err := export.WriteXLSX(xlsxFile, res); err != nil {
			return fmt.Errorf("failed to write %s: %w", xlsxFile, err)
		}
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted, cleaning up...")
		cancel()
	}()

	return ctx, cancel
}

// detectFormat determines the log format from file extension or flag.
func detectFormat(path, formatStr string) parser.Format {
	if formatStr != "" {
		return parser.ParseFormat(formatStr)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parser.FormatCSV
	case ".xlsx":
		return parser.FormatXLSX
	default:
		return parser.FormatUnknown
	}
}

// humanSize formats a byte size in human-readable form.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
