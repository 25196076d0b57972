package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

var (
	ErrUnauthorized      = errors.New("backend rejected the access token")
	ErrMalformedResponse = errors.New("malformed backend response")
)

// TokenProvider supplies the bearer token of one console client and forgets
// every persisted auth key when the backend rejects it.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	ClearAuth(ctx context.Context) error
}

// Caller is what repositories need from a bound connection.
type Caller interface {
	Call(ctx context.Context, endpoint string, opts RequestOptions, requireAuth bool) (*http.Response, error)
}

type RequestOptions struct {
	Method    string
	Header    http.Header
	Query     url.Values
	JSON      any
	Form      url.Values
	Multipart *MultipartBody
}

type FormField struct {
	Name  string
	Value string
}

type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Reader      io.Reader
}

type MultipartBody struct {
	Fields []FormField
	Files  []FilePart
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Bind returns a connection that authenticates with the given provider. A nil
// provider yields a connection that can only make public calls.
func (c *Client) Bind(tokens TokenProvider) *Conn {
	return &Conn{client: c, tokens: tokens}
}

// Ping reports whether the backend answers at all; any HTTP status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("build ping request failed: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend ping failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

type Conn struct {
	client *Client
	tokens TokenProvider
}

// Call performs one request against the backend and returns the raw response.
// It fails only on transport errors, or with ErrUnauthorized when an
// authenticated call comes back 401; in that case the client's persisted auth
// state has already been cleared.
func (c *Conn) Call(ctx context.Context, endpoint string, opts RequestOptions, requireAuth bool) (*http.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.client.baseURL + endpoint
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	body, contentType, err := encodeBody(opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build backend request failed: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if requireAuth && c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("read access token failed: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.client.httpClient.Do(req)
	if err != nil {
		c.client.logger.Warn("backend call failed", "method", method, "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("backend %s %s failed: %w", method, endpoint, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && requireAuth {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if c.tokens != nil {
			if err := c.tokens.ClearAuth(ctx); err != nil {
				c.client.logger.Error("clear auth after 401 failed", "error", err)
			}
		}
		return nil, fmt.Errorf("backend %s %s: %w", method, endpoint, ErrUnauthorized)
	}
	return resp, nil
}

func encodeBody(opts RequestOptions) (io.Reader, string, error) {
	switch {
	case opts.Multipart != nil:
		return encodeMultipart(opts.Multipart)
	case opts.Form != nil:
		return strings.NewReader(opts.Form.Encode()), "application/x-www-form-urlencoded", nil
	case opts.JSON != nil:
		raw, err := json.Marshal(opts.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("marshal backend request failed: %w", err)
		}
		return bytes.NewReader(raw), "application/json", nil
	default:
		return nil, "application/json", nil
	}
}

func encodeMultipart(body *MultipartBody) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range body.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.Field), escapeQuotes(f.Filename)))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create multipart file part failed: %w", err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, "", fmt.Errorf("copy multipart file failed: %w", err)
		}
	}
	for _, field := range body.Fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return nil, "", fmt.Errorf("write multipart field failed: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer failed: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
