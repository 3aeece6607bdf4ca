package server

import (
	"bufio"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/swap-10/rustic-server/internal/testutils"
	"github.com/swap-10/rustic-server/pkg/worker"
)

func scrape(t *testing.T, ln *fasthttputil.InmemoryListener, method, path string) *fasthttp.Response {
	t.Helper()
	conn, err := ln.Dial()
	require.NoError(t, err)
	defer conn.Close()

	_, err = fmt.Fprintf(conn, "%s %s HTTP/1.1\r\nHost: metrics\r\nConnection: close\r\n\r\n", method, path)
	require.NoError(t, err)

	resp := &fasthttp.Response{}
	require.NoError(t, resp.Read(bufio.NewReader(conn)))
	return resp
}

func TestServeMetricsListener(t *testing.T) {
	logger, hook := testutils.NewTestLogger()
	reg := prometheus.NewRegistry()

	pool, err := worker.NewPool(&worker.PoolConfig{
		PoolSize:          2,
		Logger:            logger,
		MetricsRegisterer: reg,
	})
	require.NoError(t, err)
	defer pool.Shutdown()

	done := make(chan struct{})
	pool.Execute(func() { close(done) })
	testutils.WaitClosed(t, done, time.Second)

	ln := fasthttputil.NewInmemoryListener()
	ctx, cancel := context.WithCancel(context.Background())

	var serveErr error
	served := testutils.RunAsync(func() {
		serveErr = ServeMetricsListener(ctx, ln, reg, logger)
	})

	resp := scrape(t, ln, "GET", MetricsPath)
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	body := string(resp.Body())
	assert.Contains(t, body, "rustic_jobs_submitted_total 1")
	assert.Contains(t, body, "rustic_live_workers 2")

	resp = scrape(t, ln, "GET", "/other")
	assert.Equal(t, fasthttp.StatusNotFound, resp.StatusCode())

	resp = scrape(t, ln, "POST", MetricsPath)
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, resp.StatusCode())
	assert.Equal(t, "GET", string(resp.Header.Peek(fasthttp.HeaderAllow)))

	cancel()
	testutils.WaitClosed(t, served, 6*time.Second, "metrics endpoint should stop on cancel")
	assert.NoError(t, serveErr)
	assert.NotEmpty(t, testutils.EntriesWithMessage(hook, "metrics endpoint stopped"))
}

func TestServeMetrics_BadAddress(t *testing.T) {
	logger, _ := testutils.NewTestLogger()

	err := ServeMetrics(context.Background(), "256.0.0.1:bad", prometheus.NewRegistry(), logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestNewMetricsHandler_MethodNotAllowed(t *testing.T) {
	handler := NewMetricsHandler(prometheus.NewRegistry())

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetRequestURI(MetricsPath)

	handler(&ctx)

	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
	assert.Equal(t, fasthttp.MethodGet, string(ctx.Response.Header.Peek(fasthttp.HeaderAllow)))
}

func TestNewMetricsHandler_UnknownPath(t *testing.T) {
	handler := NewMetricsHandler(prometheus.NewRegistry())

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodGet)
	ctx.Request.SetRequestURI("/debug")

	handler(&ctx)

	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Empty(t, ctx.Response.Header.Peek(fasthttp.HeaderAllow))
}
