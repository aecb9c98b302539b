package ocrgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	ocrtypes "github.com/frahmantamala/fleet-expense/internal/core/datamodel/ocrgateway"
	"github.com/frahmantamala/fleet-expense/internal/observability/metrics"
)

var (
	ErrQueueFull    = errors.New("ocr queue full, please try again later")
	ErrShuttingDown = errors.New("ocr client is shutting down")
)

type extractJob struct {
	ctx   context.Context
	req   *ocrtypes.ExtractRequest
	reply chan extractResult
}

type extractResult struct {
	resp *ocrtypes.ExtractResponse
	err  error
}

type Worker struct {
	ID         int
	WorkerPool chan chan extractJob
	JobChannel chan extractJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan extractJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan extractJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(extractJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("ocr worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("ocr worker processing job", "worker_id", w.ID, "file_name", job.req.FileName)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("ocr worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Client sends receipt images to the extraction service through a bounded
// worker pool. Extract blocks until a worker has answered.
type Client struct {
	apiURL     string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	jobQueue   chan extractJob
	workerPool chan chan extractJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

type Config struct {
	APIURL       string
	APIKey       string
	Timeout      time.Duration
	MaxWorkers   int
	JobQueueSize int
}

func NewClient(config Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 32
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		apiURL:     config.APIURL,
		apiKey:     config.APIKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan extractJob, jobQueueSize),
		workerPool: make(chan chan extractJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {
		for i := 0; i < c.maxWorkers; i++ {
			worker := NewWorker(i, c.workerPool, c.logger)
			worker.Start(c.ctx, &c.wg, c.processExtractJob)
		}

		c.wg.Add(1)
		go c.dispatch()

		c.logger.Info("ocr gateway worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue))
	})
}

func (c *Client) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:
			select {
			case jobChannel := <-c.workerPool:
				select {
				case jobChannel <- job:
				case <-c.ctx.Done():
					job.reply <- extractResult{err: ErrShuttingDown}
					return
				}
			case <-c.ctx.Done():
				job.reply <- extractResult{err: ErrShuttingDown}
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("ocr dispatcher shutting down")
			return
		}
	}
}

func (c *Client) Shutdown() {
	c.logger.Info("shutting down ocr gateway client")
	c.cancel()
	c.wg.Wait()
	c.logger.Info("ocr gateway client shutdown complete")
}

// Extract queues req and waits for the worker's answer. A full queue fails
// fast with ErrQueueFull.
func (c *Client) Extract(ctx context.Context, req *ocrtypes.ExtractRequest) (*ocrtypes.ExtractResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if c.ctx.Err() != nil {
		return nil, ErrShuttingDown
	}

	job := extractJob{ctx: ctx, req: req, reply: make(chan extractResult, 1)}

	select {
	case c.jobQueue <- job:
		c.logger.Debug("ocr job queued", "file_name", req.FileName, "queue_length", len(c.jobQueue))
	default:
		c.logger.Warn("ocr job queue full, rejecting receipt",
			"file_name", req.FileName,
			"queue_capacity", cap(c.jobQueue))
		metrics.ObserveOCR(metrics.ResultError, 0)
		return nil, ErrQueueFull
	}

	select {
	case res := <-job.reply:
		return res.resp, res.err
	case <-c.ctx.Done():
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BatchResult is the answer for one request of ExtractBatch.
type BatchResult struct {
	Response *ocrtypes.ExtractResponse
	Err      error
}

// ExtractBatch runs reqs through the pool, keeping at most one queue's worth
// of calls waiting so a large batch never hits ErrQueueFull. Results are in
// request order.
func (c *Client) ExtractBatch(ctx context.Context, reqs []*ocrtypes.ExtractRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	slots := make(chan struct{}, cap(c.jobQueue))

	var wg sync.WaitGroup
	for i, req := range reqs {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			results[i] = BatchResult{Err: ctx.Err()}
			continue
		}

		wg.Add(1)
		go func(i int, req *ocrtypes.ExtractRequest) {
			defer wg.Done()
			defer func() { <-slots }()
			resp, err := c.Extract(ctx, req)
			results[i] = BatchResult{Response: resp, Err: err}
		}(i, req)
	}
	wg.Wait()

	return results
}

func (c *Client) processExtractJob(job extractJob) {
	start := time.Now()
	resp, err := c.callExtract(job.ctx, job.req)

	result := metrics.ResultSuccess
	if err != nil || resp.Status == ocrtypes.ExtractStatusFailed {
		result = metrics.ResultError
	}
	metrics.ObserveOCR(result, time.Since(start))

	job.reply <- extractResult{resp: resp, err: err}
}

func (c *Client) callExtract(ctx context.Context, req *ocrtypes.ExtractRequest) (*ocrtypes.ExtractResponse, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", req.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build ocr request: %w", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, fmt.Errorf("failed to build ocr request: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build ocr request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/extract", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("ocr request failed", "file_name", req.FileName, "error", err)
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("ocr service returned error",
			"file_name", req.FileName,
			"status_code", resp.StatusCode)
		return nil, fmt.Errorf("ocr service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out ocrtypes.ExtractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Status == "" {
		out.Status = ocrtypes.ExtractStatusSuccess
	}

	c.logger.Info("receipt extracted",
		"file_name", req.FileName,
		"status", out.Status)
	return &out, nil
}
