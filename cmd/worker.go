package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	ocrtypes "github.com/frahmantamala/fleet-expense/internal/core/datamodel/ocrgateway"
	"github.com/frahmantamala/fleet-expense/internal/ocrgateway"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run worker pools outside the HTTP server",
	Long:  `Run the receipt OCR worker pool against local files, for checking the extraction service.`,
}

var ocrWorkerCmd = &cobra.Command{
	Use:   "ocr [file...]",
	Short: "Extract receipt fields from local files",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runOCRWorker(args)
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	apiURL       string
	apiKey       string
)

type ocrOutcome struct {
	File     string                    `json:"file"`
	Response *ocrtypes.ExtractResponse `json:"response,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

func runOCRWorker(files []string) {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	ocrConfig := ocrgateway.Config{
		APIURL:       getStringFlag(apiURL, config.OCR.APIURL),
		APIKey:       getStringFlag(apiKey, config.OCR.APIKey),
		Timeout:      config.OCR.Timeout,
		MaxWorkers:   getIntFlag(maxWorkers, config.OCR.Workers),
		JobQueueSize: getIntFlag(jobQueueSize, config.OCR.QueueSize),
	}
	if ocrConfig.APIURL == "" {
		fmt.Fprintln(os.Stderr, "ocr api_url is not configured")
		os.Exit(1)
	}

	lg.Info("starting ocr worker pool",
		"max_workers", ocrConfig.MaxWorkers,
		"job_queue_size", ocrConfig.JobQueueSize,
		"api_url", ocrConfig.APIURL,
		"files", len(files))

	client := ocrgateway.NewClient(ocrConfig, lg)
	defer client.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcomes := make([]ocrOutcome, len(files))
	var reqs []*ocrtypes.ExtractRequest
	var slots []int
	for i, file := range files {
		outcomes[i].File = file
		data, err := os.ReadFile(file)
		if err != nil {
			outcomes[i].Error = err.Error()
			continue
		}
		reqs = append(reqs, &ocrtypes.ExtractRequest{
			FileName:    filepath.Base(file),
			ContentType: mime.TypeByExtension(filepath.Ext(file)),
			Data:        data,
		})
		slots = append(slots, i)
	}

	for j, res := range client.ExtractBatch(ctx, reqs) {
		i := slots[j]
		if res.Err != nil {
			outcomes[i].Error = res.Err.Error()
			continue
		}
		outcomes[i].Response = res.Response
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcomes); err != nil {
		lg.Error("failed to write results", "error", err)
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	ocrWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	ocrWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	ocrWorkerCmd.Flags().StringVar(&apiURL, "api-url", "", "OCR API URL (overrides config)")
	ocrWorkerCmd.Flags().StringVar(&apiKey, "api-key", "", "OCR API key (overrides config)")

	workerCmd.AddCommand(ocrWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
