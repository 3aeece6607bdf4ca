package server

import (
	"bufio"
	"errors"
	"io/fs"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// Handler serves a single request on a connection from a static file tree
type Handler struct {
	// StaticDir is the root reported in resolved request paths
	StaticDir string

	// Files holds the static tree, usually os.DirFS(StaticDir)
	Files fs.FS

	// ReadTimeout bounds reading the request; zero means no limit
	ReadTimeout time.Duration

	Logger logrus.FieldLogger
}

// ServeConn reads one request, writes one response and closes conn.
// Failures are logged and never escape: the caller is a pool job.
func (h *Handler) ServeConn(conn net.Conn, connID string) {
	defer conn.Close()

	logger := h.Logger.WithFields(logrus.Fields{
		"conn_id":     connID,
		"remote_addr": conn.RemoteAddr().String(),
	})

	if h.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(h.ReadTimeout)); err != nil {
			logger.WithError(err).Warn("failed to set read deadline")
		}
	}

	req, err := ReadRequest(bufio.NewReader(conn), h.StaticDir)
	if err != nil {
		if errors.Is(err, ErrEmptyRequest) {
			logger.Debug("connection closed without a request")
			return
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			logger.WithError(err).Warn("timed out reading request")
			return
		}
		logger.WithError(err).Warn("bad request")
		h.write(conn, plainResponse(fasthttp.StatusBadRequest), logger)
		return
	}

	resp := BuildResponse(req, h.Files)
	if !h.write(conn, resp, logger) {
		return
	}

	logger.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     req.Path,
		"protocol": req.Protocol,
		"status":   resp.StatusCode,
		"bytes":    len(resp.Body),
	}).Info("request served")
}

func (h *Handler) write(conn net.Conn, resp *Response, logger logrus.FieldLogger) bool {
	if _, err := resp.WriteTo(conn); err != nil {
		logger.WithError(err).Warn("failed to write response")
		return false
	}
	return true
}
