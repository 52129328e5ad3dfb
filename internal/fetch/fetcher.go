package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/antihoax/internal/ratelimit"
	"github.com/ppiankov/antihoax/internal/util"
)

// Defaults for page fetching
const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "antihoax/1.0 (+https://github.com/ppiankov/antihoax)"
	DefaultMaxBytes  = 2 << 20
	maxRedirects     = 3
)

var (
	// ErrDisallowed is returned when robots.txt forbids fetching the URL
	ErrDisallowed = eris.New("disallowed by robots.txt")

	// ErrUnsupportedURL is returned for anything but absolute http(s) URLs
	ErrUnsupportedURL = eris.New("only absolute http and https URLs are supported")
)

// StatusError reports a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Options configures a Fetcher
type Options struct {
	Timeout       time.Duration
	UserAgent     string
	MaxBytes      int64
	RespectRobots bool
	Proxy         util.ProxyConfig

	// Limiter paces requests per target host. Nil disables pacing.
	Limiter *ratelimit.Limiter

	// AllowPrivateHosts disables the public-address checks. Only for trusted input.
	AllowPrivateHosts bool
}

// Fetcher retrieves web pages and extracts their readable text
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *RobotsChecker
	limiter    *ratelimit.Limiter
	guard      bool
}

// Result contains the fetched page and its extracted text
type Result struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Title       string
	Text        string
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}

	f := &Fetcher{
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		limiter:   opts.Limiter,
		guard:     !opts.AllowPrivateHosts,
	}

	client := util.NewHTTPClient(opts.Timeout, opts.Proxy)
	// Through a proxy the dial goes to the proxy, so only the URL and DNS checks apply
	if f.guard && !opts.Proxy.Active() {
		if tr, ok := client.Transport.(*http.Transport); ok {
			tr.DialContext = (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
				Control:   dialControl,
			}).DialContext
		}
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return eris.Errorf("stopped after %d redirects", maxRedirects)
		}
		return f.checkTarget(req.Context(), req.URL.String())
	}
	f.httpClient = client

	if opts.RespectRobots {
		f.robots = NewRobotsChecker(opts.UserAgent, client)
	}
	return f
}

// Fetch retrieves the page at rawURL and extracts its visible text
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := f.checkTarget(ctx, rawURL); err != nil {
		return nil, err
	}

	if f.limiter != nil {
		host, err := ratelimit.HostKey(rawURL)
		if err != nil {
			return nil, err
		}
		if err := f.limiter.Wait(ctx, host); err != nil {
			return nil, eris.Wrapf(err, "rate limit %s", host)
		}
	}

	if f.robots != nil {
		allowed, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, eris.Wrap(err, "robots check")
		}
		if !allowed {
			return nil, eris.Wrapf(ErrDisallowed, "fetch %s", rawURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}

	result := &Result{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	if strings.HasPrefix(strings.ToLower(result.ContentType), "text/plain") {
		result.Text = collapseSpaces(string(body))
		return result, nil
	}

	title, text, err := ExtractText(string(body))
	if err != nil {
		return nil, eris.Wrap(err, "extract text")
	}
	result.Title = title
	result.Text = text

	return result, nil
}

func (f *Fetcher) checkTarget(ctx context.Context, rawURL string) error {
	if !f.guard {
		_, err := parseHTTPURL(rawURL)
		return err
	}
	if err := ValidateURL(rawURL); err != nil {
		return err
	}
	parsed, _ := url.Parse(rawURL)
	return checkResolved(ctx, parsed.Hostname())
}

// ValidateURL accepts only absolute http and https URLs whose host is not
// localhost or a loopback, private, link-local or unspecified IP literal.
// Hostnames are checked again after resolution when fetching.
func ValidateURL(rawURL string) error {
	parsed, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}
	return checkHostLiteral(parsed.Hostname())
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(ErrUnsupportedURL, err.Error())
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Hostname() == "" {
		return nil, eris.Wrapf(ErrUnsupportedURL, "%q", rawURL)
	}
	return parsed, nil
}
