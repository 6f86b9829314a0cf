// Package fetch implements the HTTP page fetcher: a browser-like client that
// returns decoded HTML plus response metadata, or a typed FetchError.
package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
)

// maxResponseBytes limits how much of a page body is read.
const maxResponseBytes = 10 * 1024 * 1024 // 10 MB

var errTooManyRedirects = errors.New("too many redirects")

// browserHeaders is the fixed header set sent with every request, minus the
// User-Agent which is configurable. Accept-Encoding is deliberately left to
// the transport so gzip is decoded transparently; brotli is handled below
// for servers that send it regardless.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Response is one fetched page: decoded UTF-8 body plus the metadata the
// extractor and scorer need.
type Response struct {
	URL             string
	FinalURL        string
	StatusCode      int
	Status          string
	Header          http.Header
	Body            string
	ContentType     string
	ContentEncoding string
	ResponseTime    time.Duration
}

// FailureKind classifies a FetchError.
type FailureKind string

const (
	FailTimeout      FailureKind = "timeout"
	FailConnection   FailureKind = "connection"
	FailTLS          FailureKind = "tls"
	FailRedirectLoop FailureKind = "too_many_redirects"
	FailRead         FailureKind = "read"
)

// FetchError is a typed fetch failure. The crawl records it and moves on;
// it never aborts the run.
type FetchError struct {
	Kind FailureKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches pages sequentially for one crawl run.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *logrus.Logger
}

// NewClient builds a Client with the given per-request timeout and redirect
// cap. timeout covers connect through body read.
func NewClient(timeout time.Duration, maxRedirects int, userAgent string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if maxRedirects <= 0 {
		maxRedirects = 10
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch retrieves one URL. Any failure comes back as a *FetchError; non-2xx
// status codes are not errors, the caller classifies them.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: FailConnection, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, &FetchError{Kind: classify(err), URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		kind := FailRead
		if isTimeout(err) {
			kind = FailTimeout
		}
		return nil, &FetchError{Kind: kind, URL: rawURL, Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	contentEncoding := strings.ToLower(resp.Header.Get("Content-Encoding"))

	body, err := decodeBody(raw, contentType, contentEncoding)
	if err != nil {
		c.logger.WithError(err).Warnf("Body decode failed for %s, keeping raw bytes", rawURL)
		body = string(raw)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	c.logger.Debugf("HTTP %d %s (%s, %d bytes, %v)",
		resp.StatusCode, rawURL, contentType, len(body), elapsed.Round(time.Millisecond))

	return &Response{
		URL:             rawURL,
		FinalURL:        finalURL,
		StatusCode:      resp.StatusCode,
		Status:          resp.Status,
		Header:          resp.Header,
		Body:            body,
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
		ResponseTime:    elapsed,
	}, nil
}

// decodeBody reverses brotli content encoding when the transport did not,
// then converts the document to UTF-8 using the Content-Type charset with
// sniffing fallback.
func decodeBody(raw []byte, contentType, contentEncoding string) (string, error) {
	var r io.Reader = bytes.NewReader(raw)
	if contentEncoding == "br" {
		r = brotli.NewReader(r)
	}

	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return "", fmt.Errorf("charset reader: %w", err)
	}
	out, err := io.ReadAll(decoded)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(out), nil
}

func classify(err error) FailureKind {
	if isTimeout(err) {
		return FailTimeout
	}
	if errors.Is(err, errTooManyRedirects) {
		return FailRedirectLoop
	}

	var certErr *tls.CertificateVerificationError
	var recErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &recErr) {
		return FailTLS
	}
	if strings.Contains(err.Error(), "tls:") || strings.Contains(err.Error(), "x509:") {
		return FailTLS
	}
	return FailConnection
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
