package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/semaphore"
)

// ErrPoolTimeout is returned when no connection slot frees up within the pool timeout.
var ErrPoolTimeout = errors.New("timed out waiting for a connection slot")

// Fetcher performs a single logical HTTP exchange, retries included.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Request describes one outbound request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read and decoded HTTP response.
type Response struct {
	URL         string
	StatusCode  int
	Header      http.Header
	ContentType string
	Body        string
}

// Location returns the redirect target resolved against the response URL.
func (r *Response) Location() (string, error) {
	loc := r.Header.Get("Location")
	if loc == "" {
		return "", errors.New("redirect without Location header")
	}
	base, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse response url: %w", err)
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("parse location %q: %w", loc, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Options controls HTTP fetching behaviour.
type Options struct {
	UserAgent          string
	ProxyURL           string
	InsecureSkipVerify bool
	MaxBodyBytes       int64

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PoolTimeout    time.Duration
	MaxConns       int

	MaxRetries   int
	RetryBackoff time.Duration
}

// HTTPFetcher implements Fetcher via the Go http.Client.
type HTTPFetcher struct {
	client       *http.Client
	transport    *http.Transport
	userAgent    string
	maxBodyBytes int64

	slots       *semaphore.Weighted
	poolTimeout time.Duration

	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

var retryStatuses = map[int]struct{}{
	http.StatusRequestEntityTooLarge: {},
	http.StatusTooManyRequests:       {},
	http.StatusInternalServerError:   {},
	http.StatusBadGateway:            {},
	http.StatusServiceUnavailable:    {},
	http.StatusGatewayTimeout:        {},
}

// NewHTTPFetcher constructs an HTTP fetcher using the provided options.
func NewHTTPFetcher(opts Options) (*HTTPFetcher, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 20 * 1024 * 1024
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 20
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	readTimeout, writeTimeout := opts.ReadTimeout, opts.WriteTimeout

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, read: readTimeout, write: writeTimeout}, nil
		},
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   opts.MaxConns,
		MaxConnsPerHost:       opts.MaxConns,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if strings.TrimSpace(opts.ProxyURL) != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &HTTPFetcher{
		client:       client,
		transport:    transport,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		slots:        semaphore.NewWeighted(int64(opts.MaxConns)),
		poolTimeout:  opts.PoolTimeout,
		maxRetries:   opts.MaxRetries,
		backoff:      opts.RetryBackoff,
		sleep:        sleepContext,
	}, nil
}

// Fetch sends req, retrying transport failures and retryable statuses for
// GET and POST with exponential backoff. The last response or error wins.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	retryable := method == http.MethodGet || method == http.MethodPost

	var (
		resp *Response
		err  error
	)
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := f.backoff * time.Duration(1<<(attempt-1))
			if serr := f.sleep(ctx, delay); serr != nil {
				if resp != nil {
					return resp, nil
				}
				return nil, fmt.Errorf("retry interrupted: %w", errors.Join(err, serr))
			}
		}

		resp, err = f.do(ctx, method, req)
		if !retryable || attempt >= f.maxRetries || ctx.Err() != nil {
			return resp, err
		}
		if err != nil {
			continue
		}
		if _, again := retryStatuses[resp.StatusCode]; !again {
			return resp, nil
		}
	}
}

func (f *HTTPFetcher) do(ctx context.Context, method string, req Request) (*Response, error) {
	var body io.Reader
	if method != http.MethodGet && len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, values := range req.Header {
		if strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Host = httpReq.URL.Host
	if httpReq.Header.Get("User-Agent") == "" && f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}
	if httpReq.Header.Get("Accept-Encoding") == "" {
		httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	}

	if err := f.acquire(ctx); err != nil {
		return nil, err
	}
	defer f.slots.Release(1)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}

	text, err := f.readBody(resp)
	if err != nil {
		return nil, err
	}

	return &Response{
		URL:         req.URL,
		StatusCode:  resp.StatusCode,
		Header:      resp.Header.Clone(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        text,
	}, nil
}

// acquire takes a connection slot, waiting at most the pool timeout.
func (f *HTTPFetcher) acquire(ctx context.Context) error {
	if f.slots.TryAcquire(1) {
		return nil
	}
	acqCtx := ctx
	if f.poolTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, f.poolTimeout)
		defer cancel()
	}
	if err := f.slots.Acquire(acqCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrPoolTimeout
	}
	return nil
}

func (f *HTTPFetcher) readBody(resp *http.Response) (string, error) {
	if resp == nil || resp.Body == nil {
		return "", errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			if errors.Is(err, io.EOF) {
				return "", nil
			}
			return "", fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	limited := io.LimitReader(reader, f.maxBodyBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > f.maxBodyBytes {
		return "", fmt.Errorf("response body exceeds limit of %d bytes", f.maxBodyBytes)
	}
	return decodeText(raw, resp.Header.Get("Content-Type")), nil
}

// decodeText converts raw to UTF-8 using the declared or sniffed charset.
func decodeText(raw []byte, contentType string) string {
	if len(raw) == 0 {
		return ""
	}
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// CloseIdleConnections drops pooled connections; used on hard cancel.
func (f *HTTPFetcher) CloseIdleConnections() {
	if f == nil {
		return
	}
	f.transport.CloseIdleConnections()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// deadlineConn refreshes the read and write deadlines before every I/O call,
// so each timeout bounds inactivity rather than the whole exchange.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
