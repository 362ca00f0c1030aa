package djpxml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/resilience"
)

const (
	operationFetch  = "djp.fetch"
	maxResponseSize = 1 << 20
)

// DefaultAllowedHosts are the DJP hosts e-Faktur QR codes point at.
var DefaultAllowedHosts = []string{"efaktur.pajak.go.id", "svc.efaktur.pajak.go.id"}

// HTTPFetcher follows the QR URL printed on the invoice; the DJP endpoint
// answers with a resValidateFakturPm document.
type HTTPFetcher struct {
	httpClient   *http.Client
	executor     *resilience.Executor
	allowedHosts map[string]struct{}
}

type HTTPOptions struct {
	Timeout            time.Duration
	AllowedHosts       []string
	ResilienceExecutor *resilience.Executor
	HTTPClient         *http.Client
}

func NewHTTPFetcher(options HTTPOptions) *HTTPFetcher {
	client := options.HTTPClient
	if client == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	hosts := options.AllowedHosts
	if len(hosts) == 0 {
		hosts = DefaultAllowedHosts
	}
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = struct{}{}
		}
	}
	f := &HTTPFetcher{
		executor:     options.ResilienceExecutor,
		allowedHosts: allowed,
	}
	redirecting := *client
	redirecting.CheckRedirect = f.checkRedirect
	f.httpClient = &redirecting
	return f
}

func (f *HTTPFetcher) FetchXML(ctx context.Context, qrURL string) ([]byte, error) {
	target, err := f.checkURL(qrURL)
	if err != nil {
		return nil, err
	}

	var body []byte
	if f.executor != nil {
		body, err = resilience.ExecuteValue(ctx, f.executor, operationFetch, func(ctx context.Context) ([]byte, error) {
			return f.get(ctx, target)
		}, classifyDJPError)
	} else {
		body, err = f.get(ctx, target)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded(err)
	}
	return body, nil
}

func (f *HTTPFetcher) checkURL(qrURL string) (string, error) {
	if strings.TrimSpace(qrURL) == "" {
		return "", domain.WrapError(domain.ErrReferenceUnavailable, operationFetch, errors.New("document has no qr code"))
	}
	u, err := url.Parse(strings.TrimSpace(qrURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", domain.WrapError(domain.ErrReferenceUnavailable, operationFetch, fmt.Errorf("qr payload is not a url: %q", qrURL))
	}
	if _, ok := f.allowedHosts[strings.ToLower(u.Hostname())]; !ok {
		return "", domain.WrapError(domain.ErrReferenceUnavailable, operationFetch, fmt.Errorf("host %q is not a djp host", u.Hostname()))
	}
	return u.String(), nil
}

// checkRedirect holds every hop to the same host list as the QR URL itself.
func (f *HTTPFetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return domain.WrapError(domain.ErrReferenceUnavailable, operationFetch, errors.New("too many redirects"))
	}
	if _, err := f.checkURL(req.URL.String()); err != nil {
		return err
	}
	return nil
}

func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create djp request: %w", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("djp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, newHTTPStatusError(resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read djp response: %w", err)
	}
	return body, nil
}
