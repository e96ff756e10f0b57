package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/marcus-hale/chartscan/internal/common"
	"github.com/marcus-hale/chartscan/internal/export"
	"github.com/marcus-hale/chartscan/internal/extract"
	"github.com/marcus-hale/chartscan/internal/orchestrator"
	"github.com/marcus-hale/chartscan/internal/store"
	tbl "github.com/marcus-hale/chartscan/internal/table"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Queue scans, run the extraction batch and write exports",
	RunE:  runProcess,
}

var (
	flagDir      string
	flagOutDir   string
	flagEndpoint string
	flagAPIKey   string
	flagPreview  bool
)

func init() {
	processCmd.Flags().StringVar(&flagDir, "dir", "", "directory of scans to process (required)")
	processCmd.Flags().StringVar(&flagOutDir, "out-dir", "", "directory for export files (default: parent of --dir)")
	processCmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "extraction endpoint base URL (overrides config)")
	processCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "extraction endpoint API key (overrides config)")
	processCmd.Flags().BoolVar(&flagPreview, "preview", false, "print the extracted table to the terminal")
	_ = processCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(processCmd)
}

// cliNotifier renders core notifications as colored terminal lines.
func cliNotifier(kind common.NotifyKind, text string) {
	switch kind {
	case common.NotifySuccess:
		color.Green("✓ %s", text)
	case common.NotifyError:
		color.Red("✗ %s", text)
	default:
		color.Cyan("· %s", text)
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	if flagEndpoint != "" {
		cfg.Extract.BaseURL = flagEndpoint
	}
	if flagAPIKey != "" {
		cfg.Extract.APIKey = flagAPIKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Log.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	outDir := flagOutDir
	if outDir == "" {
		outDir = filepath.Dir(flagDir)
	}

	files, err := store.ScanDirectory(flagDir)
	if err != nil {
		return common.WrapError(err, "scan directory")
	}
	if len(files) == 0 {
		return fmt.Errorf("no scan files found in %s", flagDir)
	}

	notifier := common.NotifyFunc(cliNotifier)
	st := store.NewStore(logger, store.WithNotifier(notifier))
	st.AddFiles(files)

	client := extract.NewClient(extract.Config{
		BaseURL: cfg.Extract.BaseURL,
		APIKey:  cfg.Extract.APIKey,
		Timeout: cfg.Extract.Timeout,
	}, logger)

	orch := orchestrator.New(st, client, logger,
		orchestrator.WithNotifier(notifier),
		orchestrator.WithTickInterval(cfg.Batch.TickInterval),
		orchestrator.WithResultsDelay(cfg.Batch.ResultsDelay),
	)

	summary, err := orch.Run(cmd.Context())
	if err != nil {
		return err
	}

	combined := st.CombinedOutput()
	if combined == "" {
		logger.Warn("process.no_output", "eligible", summary.Eligible)
		return fmt.Errorf("no documents produced structured output")
	}

	svc := export.NewService(logger)
	if err := writeExports(svc, combined, outDir); err != nil {
		return err
	}

	if flagPreview {
		printPreview(combined)
	}

	fmt.Printf("Batch complete: %d/%d document(s) extracted, exports in %s\n",
		summary.Succeeded, summary.Eligible, outDir)
	return nil
}

func writeExports(svc *export.Service, combined, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return common.WrapError(err, "create out dir")
	}

	if err := os.WriteFile(filepath.Join(outDir, "documents.xml"), svc.RawMarkup(combined), 0o644); err != nil {
		return common.WrapError(err, "write markup export")
	}

	csvBytes, err := svc.CSV(combined)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "documents.csv"), csvBytes, 0o644); err != nil {
		return common.WrapError(err, "write csv export")
	}

	xlsxBytes, err := svc.XLSX(combined)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "documents.xlsx"), xlsxBytes, 0o644); err != nil {
		return common.WrapError(err, "write xlsx export")
	}
	return nil
}

func printPreview(combined string) {
	rows, ok := tbl.Rows(combined)
	if !ok {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	header := make(table.Row, 0, len(tbl.Header))
	for _, h := range tbl.Header {
		header = append(header, h)
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := make(table.Row, 0, len(r))
		for _, v := range r {
			row = append(row, v)
		}
		t.AppendRow(row)
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
