package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/valyala/fasthttp"
)

// ErrEmptyRequest is returned when the client closed the connection without sending a request
var ErrEmptyRequest = errors.New("empty request")

// Request is the part of an HTTP request the server acts on
type Request struct {
	// Method is the request method, e.g. GET
	Method string

	// Target is the cleaned URL path as sent by the client
	Target string

	// Path is Target resolved under the static root, with any trailing slash removed
	Path string

	// Protocol is HTTP/1.1 or HTTP/1.0
	Protocol string
}

// ReadRequest reads one request from r and resolves its path under
// staticDir. Only the request line and headers are read.
func ReadRequest(r *bufio.Reader, staticDir string) (*Request, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	// bodies are never used; leave them unread
	if err := req.Header.Read(r); err != nil {
		var nothingRead fasthttp.ErrNothingRead
		if errors.Is(err, io.EOF) || errors.As(err, &nothingRead) {
			return nil, ErrEmptyRequest
		}
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}

	protocol := "HTTP/1.0"
	if req.Header.IsHTTP11() {
		protocol = "HTTP/1.1"
	}

	// URI().Path() is already percent-decoded and normalized, so ".."
	// segments cannot climb above the root
	target := path.Clean("/" + string(req.URI().Path()))

	return &Request{
		Method:   string(req.Header.Method()),
		Target:   target,
		Path:     resolvePath(staticDir, target),
		Protocol: protocol,
	}, nil
}

// resolvePath joins the static root and target and strips a trailing slash
func resolvePath(staticDir, target string) string {
	p := strings.TrimSuffix(staticDir, "/") + target
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
