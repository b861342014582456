package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultFCMURL is the Firebase Cloud Messaging API root.
	DefaultFCMURL = "https://fcm.googleapis.com"
	fcmScope      = "https://www.googleapis.com/auth/firebase.messaging"
)

var (
	// ErrTokenInvalid marks a device token FCM will never deliver to again.
	ErrTokenInvalid = errors.New("device token invalid")
	// ErrSend is returned for any other delivery failure.
	ErrSend = errors.New("push send failed")
)

// FCMOptions configures an FCMSender.
type FCMOptions struct {
	BaseURL string
	// ProjectID defaults to the project_id of the credentials.
	ProjectID   string
	Credentials []byte
	Timeout     time.Duration
	ProxyURL    string
}

// FCMSender delivers messages through the FCM HTTP v1 API.
type FCMSender struct {
	client  *resty.Client
	project string
	log     *zap.Logger
}

type fcmErrorDetail struct {
	Type      string `json:"@type"`
	ErrorCode string `json:"errorCode"`
}

type fcmError struct {
	Error struct {
		Code    int              `json:"code"`
		Message string           `json:"message"`
		Status  string           `json:"status"`
		Details []fcmErrorDetail `json:"details"`
	} `json:"error"`
}

// NewFCMSender builds the authenticated client.
func NewFCMSender(opts FCMOptions, log *zap.Logger) (*FCMSender, error) {
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

	project := opts.ProjectID
	hc := base
	if len(opts.Credentials) > 0 {
		conf, err := google.JWTConfigFromJSON(opts.Credentials, fcmScope)
		if err != nil {
			return nil, fmt.Errorf("parse fcm credentials: %w", err)
		}
		if project == "" {
			var key struct {
				ProjectID string `json:"project_id"`
			}
			if err := json.Unmarshal(opts.Credentials, &key); err == nil {
				project = key.ProjectID
			}
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		hc = oauth2.NewClient(ctx, conf.TokenSource(ctx))
	}
	if project == "" {
		return nil, errors.New("fcm project id is required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultFCMURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.NewWithClient(hc).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetPathParam("project", project)
	return &FCMSender{client: client, project: project, log: log}, nil
}

func webpushPayload(token string, msg Message) map[string]any {
	msg = msg.WithDefaults()
	notification := map[string]any{
		"title":              msg.Title,
		"body":               msg.Body,
		"icon":               msg.Icon,
		"badge":              msg.Badge,
		"image":              msg.Image,
		"requireInteraction": true,
	}
	m := map[string]any{
		"token": token,
		"notification": map[string]string{
			"title": msg.Title,
			"body":  msg.Body,
		},
		"webpush": map[string]any{
			"notification": notification,
			"fcm_options":  map[string]string{"link": msg.Link},
		},
	}
	if len(msg.Data) > 0 {
		m["data"] = msg.Data
	}
	return map[string]any{"message": m}
}

// Send pushes msg to one device token.
func (f *FCMSender) Send(ctx context.Context, token string, msg Message) error {
	var apiErr fcmError
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(webpushPayload(token, msg)).
		SetError(&apiErr).
		Post("/v1/projects/{project}/messages:send")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	if resp.IsSuccess() {
		return nil
	}

	e := apiErr.Error
	if tokenRejected(e.Status, e.Details) {
		return fmt.Errorf("%w: %s", ErrTokenInvalid, e.Message)
	}
	msgText := e.Message
	if msgText == "" {
		msgText = resp.Status()
	}
	return fmt.Errorf("%w: status %d: %s", ErrSend, resp.StatusCode(), msgText)
}

// tokenRejected reports whether FCM refused the token itself. A bare
// INVALID_ARGUMENT also covers payload errors, which would fail every token
// alike, so it never counts.
func tokenRejected(status string, details []fcmErrorDetail) bool {
	for _, d := range details {
		if d.ErrorCode == "UNREGISTERED" {
			return true
		}
	}
	return status == "NOT_FOUND"
}
