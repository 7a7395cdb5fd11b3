// CaseFlow - process state reconstruction for in-flight cases.
// Combines a BPMN model, its reachability graph, and an event log into the
// current control-flow state of every ongoing case.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	modelFile  string
	graphFile  string
	logFile    string
	outputFile string
	xlsxFile   string
	formatFlag string
	configFile string
	verbose    bool

	// Log column flags
	csvDelimiter       string
	csvCaseIDColumn    string
	csvActivityColumn  string
	csvResourceColumn  string
	csvEnabledColumn   string
	csvStartColumn     string
	csvEndColumn       string
	csvTimestampFormat string

	// Compute flags
	ngramLimit int
	workers    int

	// Telemetry flags
	otlpEndpoint string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "caseflow",
	Short: "CaseFlow - Reconstruct the state of in-flight process cases",
	Long: `CaseFlow reconstructs the current control-flow state of every ongoing case
in an event log, given a BPMN process model and its reachability graph.

For each case it reports the marked sequence flows, the ongoing activities,
and the enabled activities and gateways with their enablement times.`,
	Version: fmt.Sprintf("%s (%s)", version, commit),
}

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct",
	Short: "Compute case states from a model, graph, and event log",
	Long: `Compute the current state of every ongoing case.

Examples:
  caseflow reconstruct -m order.bpmn -g order_rg.json -l events.csv -o states.json
  caseflow reconstruct -m order.bpmn -g order_rg.json -l events.xlsx --xlsx states.xlsx
  caseflow reconstruct -m order.bpmn -g order_rg.json -l events.csv --workers 8 --ngram-limit 3`,
	RunE: runReconstruct,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch an event log and recompute states on change",
	Long: `Watch the event log file and re-run reconstruction whenever it changes.
Useful when a log is appended to continuously.

Example:
  caseflow watch -m order.bpmn -g order_rg.json -l events.csv -o states.json`,
	RunE: runWatch,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display information about the model, graph, and log",
	Long:  `Load the inputs and print their sizes without computing any states.`,
	RunE:  runInfo,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (YAML)")

	for _, cmd := range []*cobra.Command{reconstructCmd, watchCmd, infoCmd} {
		cmd.Flags().StringVarP(&modelFile, "model", "m", "", "BPMN model file path (required)")
		cmd.Flags().StringVarP(&graphFile, "graph", "g", "", "Reachability graph JSON file path (required)")
		cmd.Flags().StringVarP(&logFile, "log", "l", "", "Event log file path (required)")
		cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Log format (csv, xlsx) - auto-detected if not specified")
		cmd.MarkFlagRequired("model")
		cmd.MarkFlagRequired("graph")
		cmd.MarkFlagRequired("log")
	}

	for _, cmd := range []*cobra.Command{reconstructCmd, watchCmd} {
		cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output JSON file path (defaults to stdout)")
		cmd.Flags().StringVar(&xlsxFile, "xlsx", "", "Also write an XLSX workbook to this path")

		// Log column flags
		cmd.Flags().StringVar(&csvDelimiter, "delimiter", "", "CSV field delimiter")
		cmd.Flags().StringVar(&csvCaseIDColumn, "case-id", "", "Case ID column name")
		cmd.Flags().StringVar(&csvActivityColumn, "activity", "", "Activity column name")
		cmd.Flags().StringVar(&csvResourceColumn, "resource", "", "Resource column name")
		cmd.Flags().StringVar(&csvEnabledColumn, "enabled", "", "Enabled-time column name")
		cmd.Flags().StringVar(&csvStartColumn, "start", "", "Start-time column name")
		cmd.Flags().StringVar(&csvEndColumn, "end", "", "End-time column name")
		cmd.Flags().StringVar(&csvTimestampFormat, "timestamp-format", "", "Timestamp format (Go time layout)")

		// Compute flags
		cmd.Flags().IntVar(&ngramLimit, "ngram-limit", 0, "Largest trace suffix the marking lookup considers")
		cmd.Flags().IntVar(&workers, "workers", 0, "Number of parallel case workers (0 = sequential)")

		// Telemetry flags
		cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint for tracing (enables telemetry)")
	}

	rootCmd.AddCommand(reconstructCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(infoCmd)
}
