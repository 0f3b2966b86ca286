//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/segmentwriter/entities/errors"
	"github.com/weaviate/segmentwriter/entities/failure"
)

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger, err := opts.logger()
	if err != nil {
		logrus.WithError(err).Fatal("invalid logger options")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.WithError(err).WithField("index", opts.Index).Error("loading failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts Options, logger *logrus.Logger) error {
	props, err := opts.propertySource()
	if err != nil {
		return err
	}

	var reg prometheus.Registerer
	if opts.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		reg = registry

		shutdown := serveMetrics(opts.MetricsAddr, registry, logger)
		defer shutdown()
	}

	handler := failure.NewLogHandler(logger)

	var b backend
	switch opts.Backend {
	case "elasticsearch":
		b, err = newElasticsearchBackend(ctx, opts.Index, props, reg, handler, logger)
	default:
		b, err = newEmbeddedBackend(opts.Index, props, reg, handler, logger)
	}
	if err != nil {
		return errors.Wrapf(err, "start %s backend", opts.Backend)
	}

	input, closeInput, err := openInput(opts.Input)
	if err != nil {
		return enterrors.WithSuppressed(err, b.Finish(context.Background(), false))
	}
	defer closeInput()

	start := time.Now()
	stats, loadErr := load(ctx, input, opts.BatchSize, b.Apply)

	// finish even after a failed load, so that applied batches are kept
	finishErr := b.Finish(context.Background(), opts.ForceMerge && loadErr == nil)
	if loadErr != nil {
		return enterrors.WithSuppressed(loadErr, finishErr)
	}
	if finishErr != nil {
		return finishErr
	}

	logger.WithFields(logrus.Fields{
		"index":   opts.Index,
		"backend": opts.Backend,
		"lines":   stats.Lines,
		"works":   stats.Works,
		"batches": stats.Batches,
		"took":    time.Since(start),
	}).Info("loading finished")
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open input")
	}
	return f, func() { f.Close() }, nil
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, logger logrus.FieldLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	enterrors.GoWrapper(func() {
		logger.WithField("addr", addr).Info("serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server failed")
		}
	}, logger)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}
