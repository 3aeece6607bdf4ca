package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// MetricsPath is the path the metrics endpoint serves
const MetricsPath = "/metrics"

const metricsShutdownTimeout = 5 * time.Second

// NewMetricsHandler returns a fasthttp handler serving gatherer at MetricsPath
func NewMetricsHandler(gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	metrics := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	)

	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != MetricsPath {
			ctx.Error(fasthttp.StatusMessage(fasthttp.StatusNotFound), fasthttp.StatusNotFound)
			return
		}
		if !ctx.IsGet() {
			// Error resets the response, so Allow goes on afterwards
			ctx.Error(fasthttp.StatusMessage(fasthttp.StatusMethodNotAllowed), fasthttp.StatusMethodNotAllowed)
			ctx.Response.Header.Set(fasthttp.HeaderAllow, fasthttp.MethodGet)
			return
		}
		metrics(ctx)
	}
}

// ServeMetrics listens on addr and serves gatherer until ctx is done
func ServeMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger logrus.FieldLogger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ServeMetricsListener(ctx, ln, gatherer, logger)
}

// ServeMetricsListener serves gatherer on ln until ctx is done
func ServeMetricsListener(ctx context.Context, ln net.Listener, gatherer prometheus.Gatherer, logger logrus.FieldLogger) error {
	srv := &fasthttp.Server{
		Handler:               NewMetricsHandler(gatherer),
		Name:                  "rustic-metrics",
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		NoDefaultServerHeader: true,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.WithField("addr", ln.Addr().String()).Info("metrics endpoint listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()

	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop metrics server: %w", err)
	}
	logger.Info("metrics endpoint stopped")
	return nil
}
