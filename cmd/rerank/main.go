// Command rerank reranks a batch of items from a JSON file without starting
// the HTTP server. The input has the shape of the batch endpoint body:
//
//	{"items": [{"query": "...", "documents": [...], "top_k": 3}]}
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lk2023060901/rerank-gateway/internal/conf"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/injector"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/biz"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/service"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "config file path")
	inputFile  = flag.String("input", "", "batch input file, - for stdin")
	backend    = flag.String("backend", "", "backend for items that do not name one")
	verbose    = flag.Bool("v", false, "debug logging to stderr")
)

func main() {
	flag.Parse()

	if *inputFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lgr, err := newLogger(*verbose)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer lgr.Sync()
	logger.SetGlobal(lgr)

	batch, err := readBatch(*inputFile)
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}

	uc, cleanup, err := injector.InitializeUseCase(config, lgr)
	if err != nil {
		log.Fatalf("failed to initialize reranker: %v", err)
	}
	defer cleanup()

	reqs := make([]*biz.RerankRequest, len(batch.Items))
	for i := range batch.Items {
		if batch.Items[i].Backend == "" {
			batch.Items[i].Backend = *backend
		}
		reqs[i] = batch.Items[i].ToBiz(config.Rerank.Policy)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := uc.RerankBatch(ctx, reqs)
	if err != nil {
		lgr.Error("batch interrupted", zap.Error(err))
	}

	resp := service.NewBatchRerankResponse(results)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		log.Fatalf("failed to write output: %v", err)
	}

	if resp.Failed > 0 || err != nil {
		os.Exit(1)
	}
}

// newLogger keeps stdout free for the JSON output
func newLogger(verbose bool) (*logger.Logger, error) {
	if verbose {
		return logger.Development()
	}
	return logger.NewWithOptions(
		logger.WithLevel("warn"),
		logger.WithOutput("stderr"),
		logger.WithCaller(false),
	)
}

func readBatch(path string) (*service.BatchRerankRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var batch service.BatchRerankRequest
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("invalid batch file: %w", err)
	}
	if len(batch.Items) == 0 {
		return nil, fmt.Errorf("batch file has no items")
	}
	return &batch, nil
}
