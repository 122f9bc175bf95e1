// Package fetch retrieves email documents and PDF attachments over HTTP.
package fetch

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/m-mizutani/goerr/v2"

	"github.com/HendryAvila/formpilot/internal/logging"
)

var (
	// ErrHTTPStatus is returned for non-2xx responses.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	// ErrNotPDF is returned when a downloaded payload is not a PDF.
	ErrNotPDF = errors.New("downloaded file is not a PDF")
	// ErrTooLarge is returned when a response body exceeds MaxBodyBytes.
	ErrTooLarge = errors.New("response body too large")
)

// Options configures a Client.
type Options struct {
	// WorkDir is where downloaded PDFs are written.
	WorkDir   string
	Timeout   time.Duration
	Retries   int
	UserAgent string
	// MaxBodyBytes caps response bodies. Zero or less means no limit.
	MaxBodyBytes int
	Logger       *log.Logger
}

// Client downloads email JSON and PDFs.
type Client struct {
	http    *resty.Client
	workDir string
	logger  *log.Logger
}

// Download describes a PDF saved to disk.
type Download struct {
	Path        string `json:"filepath"`
	Size        int    `json:"size_bytes"`
	ContentType string `json:"content_type"`
	SourceURL   string `json:"source_url"`
}

// New creates a Client. The work directory is created if missing.
func New(opts Options) (*Client, error) {
	if opts.WorkDir == "" {
		return nil, goerr.New("work directory is required")
	}
	if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create work directory", goerr.V("dir", opts.WorkDir))
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	hc := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetResponseBodyLimit(opts.MaxBodyBytes)
	if opts.UserAgent != "" {
		hc.SetHeader("User-Agent", opts.UserAgent)
	}
	hc.AddRetryCondition(retryCondition)

	return &Client{http: hc, workDir: opts.WorkDir, logger: logger}, nil
}

// retryCondition retries network errors and 5xx/429 responses. An
// oversized body is final.
func retryCondition(r *resty.Response, err error) bool {
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		return false
	}
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests
}

// WorkDir returns the download directory.
func (c *Client) WorkDir() string {
	return c.workDir
}

// GetJSON fetches a document and returns its body.
func (c *Client) GetJSON(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(rawURL)
	if err != nil {
		return nil, requestError(err, "failed to fetch document", rawURL)
	}
	if resp.IsError() {
		return nil, goerr.Wrap(ErrHTTPStatus, "failed to fetch document",
			goerr.V("url", rawURL), goerr.V("status", resp.StatusCode()))
	}
	c.logger.Debug("fetched document", "url", rawURL, "bytes", len(resp.Body()))
	return resp.Body(), nil
}

// DownloadPDF fetches a PDF and saves it under the work directory. Google
// Drive share links are rewritten to their direct-download form first.
func (c *Client) DownloadPDF(ctx context.Context, rawURL string) (*Download, error) {
	target := DirectURL(rawURL)

	resp, err := c.http.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, requestError(err, "failed to download PDF", rawURL)
	}
	if resp.IsError() {
		return nil, goerr.Wrap(ErrHTTPStatus, "failed to download PDF",
			goerr.V("url", rawURL), goerr.V("status", resp.StatusCode()))
	}

	body := resp.Body()
	mt := mimetype.Detect(body)
	if !mt.Is("application/pdf") {
		return nil, goerr.Wrap(ErrNotPDF, "refusing to save download",
			goerr.V("url", rawURL), goerr.V("detected", mt.String()))
	}

	name := FileName(rawURL, resp.Header().Get("Content-Disposition"))
	dst := filepath.Join(c.workDir, name)
	if err := os.WriteFile(dst, body, 0o644); err != nil {
		return nil, goerr.Wrap(err, "failed to save PDF", goerr.V("path", dst))
	}

	c.logger.Info("downloaded PDF", "url", rawURL, "path", dst, "bytes", len(body))

	return &Download{
		Path:        dst,
		Size:        len(body),
		ContentType: mt.String(),
		SourceURL:   rawURL,
	}, nil
}

func requestError(err error, msg, rawURL string) error {
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		return goerr.Wrap(ErrTooLarge, msg, goerr.V("url", rawURL))
	}
	return goerr.Wrap(err, msg, goerr.V("url", rawURL))
}

var driveFileID = regexp.MustCompile(`/file/d/([A-Za-z0-9_-]+)`)

// DirectURL rewrites Google Drive share links to the direct-download
// endpoint. Other URLs are returned unchanged.
func DirectURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != "drive.google.com" {
		return rawURL
	}
	if id := driveID(u); id != "" {
		return "https://drive.google.com/uc?export=download&id=" + id
	}
	return rawURL
}

func driveID(u *url.URL) string {
	if m := driveFileID.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return u.Query().Get("id")
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName picks the local file name for a download: the Content-Disposition
// filename when present, the Drive file id for Drive links, or the last path
// segment of the URL. The result always ends in ".pdf".
func FileName(rawURL, contentDisposition string) string {
	name := ""
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			name = params["filename"]
		}
	}
	if name == "" {
		if u, err := url.Parse(rawURL); err == nil {
			if u.Host == "drive.google.com" {
				name = driveID(u)
			}
			if name == "" {
				name = path.Base(u.Path)
			}
		}
	}

	name = unsafeName.ReplaceAllString(filepath.Base(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "downloaded"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
