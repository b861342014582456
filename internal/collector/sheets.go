package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"

	"MarketPulse/internal/sheet"
)

const (
	// DefaultSheetsURL is the Google Sheets API root.
	DefaultSheetsURL = "https://sheets.googleapis.com"
	sheetsScope      = "https://www.googleapis.com/auth/spreadsheets.readonly"
)

// SheetsOptions configures a SheetsSource.
type SheetsOptions struct {
	BaseURL string
	// Credentials is a service-account JSON key. Empty means unauthenticated
	// requests, which only public sheets and test servers accept.
	Credentials       []byte
	RequestsPerMinute int
	Timeout           time.Duration
	ProxyURL          string
}

// SheetsSource reads ranges through the Sheets v4 values endpoint.
type SheetsSource struct {
	client  *resty.Client
	limiter *rate.Limiter
	timeout time.Duration
	log     *zap.Logger
}

type valueRange struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewSheetsSource builds the HTTP client, authenticating with the service
// account when credentials are given.
func NewSheetsSource(opts SheetsOptions, log *zap.Logger) (*SheetsSource, error) {
	if log == nil {
		log = zap.NewNop()
	}
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	base := &http.Client{Transport: transport}

	hc := base
	if len(opts.Credentials) > 0 {
		conf, err := google.JWTConfigFromJSON(opts.Credentials, sheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse sheets credentials: %w", err)
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		hc = oauth2.NewClient(ctx, conf.TokenSource(ctx))
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultSheetsURL
	}
	client := resty.NewWithClient(hc).SetBaseURL(baseURL)

	perMinute := opts.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SheetsSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), 5),
		timeout: timeout,
		log:     log,
	}, nil
}

func (s *SheetsSource) Name() string { return "sheets" }

// FetchTable reads one range. Each call waits for the rate limiter and then
// gets its own fetch deadline.
func (s *SheetsSource) FetchTable(ctx context.Context, tab Tab) (sheet.Table, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return sheet.Table{}, fmt.Errorf("%w: %s: %w", ErrUpstream, tab, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var body valueRange
	var apiErr apiError
	resp, err := s.client.R().
		SetContext(fetchCtx).
		SetPathParams(map[string]string{"id": tab.SpreadsheetID, "range": tab.Range}).
		SetQueryParam("majorDimension", "ROWS").
		SetResult(&body).
		SetError(&apiErr).
		Get("/v4/spreadsheets/{id}/values/{range}")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return sheet.Table{}, fmt.Errorf("%w: %s after %s", ErrUpstreamTimeout, tab, s.timeout)
		}
		return sheet.Table{}, fmt.Errorf("%w: %s: %w", ErrUpstream, tab, err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.String()
		}
		return sheet.Table{}, fmt.Errorf("%w: %s: status %d: %s", ErrUpstream, tab, resp.StatusCode(), msg)
	}

	s.log.Debug("sheet range fetched",
		zap.String("tab", tab.String()),
		zap.Int("rows", len(body.Values)),
		zap.Duration("elapsed", time.Since(start)))
	return tableFromRows(body.Values)
}
