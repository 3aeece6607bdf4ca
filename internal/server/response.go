package server

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/valyala/fasthttp"
)

const (
	// NotFoundPage is served with 404 and 405 responses when present
	NotFoundPage = "404.html"

	// IndexPage is served for directory requests
	IndexPage = "index.html"

	htmlContentType = "text/html; charset=utf-8"
	textContentType = "text/plain; charset=utf-8"
)

// Response is a complete response to a single request
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Status returns the status line text, e.g. "404 Not Found"
func (r *Response) Status() string {
	return fasthttp.StatusMessage(r.StatusCode)
}

// BuildResponse selects the status and body for req from the files in fsys.
// GET of a file returns it. GET of a directory returns its index page. A
// missing file gets 404 and any other method 405, both with the not-found
// page as body.
func BuildResponse(req *Request, fsys fs.FS) *Response {
	if req.Method != fasthttp.MethodGet {
		return notFoundPage(fsys, fasthttp.StatusMethodNotAllowed)
	}

	name := fsName(req.Target)

	info, err := fs.Stat(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFoundPage(fsys, fasthttp.StatusNotFound)
		}
		return plainResponse(fasthttp.StatusInternalServerError)
	}

	if info.IsDir() {
		name = path.Join(name, IndexPage)
	}

	body, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFoundPage(fsys, fasthttp.StatusNotFound)
		}
		return plainResponse(fasthttp.StatusInternalServerError)
	}

	return &Response{
		StatusCode:  fasthttp.StatusOK,
		ContentType: contentType(name),
		Body:        body,
	}
}

// WriteTo writes the response as HTTP/1.1 and asks the client to close the
// connection
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	resp.SetStatusCode(r.StatusCode)
	resp.Header.SetContentType(r.ContentType)
	if r.StatusCode == fasthttp.StatusMethodNotAllowed {
		resp.Header.Set(fasthttp.HeaderAllow, fasthttp.MethodGet)
	}
	resp.SetConnectionClose()
	resp.SetBodyRaw(r.Body)

	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	if err := resp.Write(bw); err != nil {
		return cw.n, err
	}
	err := bw.Flush()
	return cw.n, err
}

func notFoundPage(fsys fs.FS, status int) *Response {
	body, err := fs.ReadFile(fsys, NotFoundPage)
	if err != nil {
		return plainResponse(status)
	}
	return &Response{
		StatusCode:  status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func plainResponse(status int) *Response {
	return &Response{
		StatusCode:  status,
		ContentType: textContentType,
		Body:        []byte(fasthttp.StatusMessage(status) + "\n"),
	}
}

// fsName maps a cleaned URL path to an fs.FS name
func fsName(target string) string {
	name := strings.TrimPrefix(target, "/")
	if name == "" {
		return "."
	}
	return name
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
