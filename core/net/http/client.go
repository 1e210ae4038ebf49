package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kochabx/cardiac/errors"
)

const maxErrorBody = 4 << 10

// Client 面向单一后端的 REST 客户端，非 2xx 响应统一转换为 *errors.Error
type Client struct {
	base   *url.URL
	client *http.Client
	header http.Header
}

// Option configures the HTTP client
type Option func(*Client)

// WithClient sets a custom HTTP client
func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithDefaultHeader 每个请求都会携带的头部
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// New 创建客户端，baseURL 为后端根地址，如 http://127.0.0.1:8000
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, 400, "invalid base url %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New(400, "unsupported base url scheme %q", u.Scheme)
	}
	c := &Client{
		base:   u,
		client: &http.Client{},
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Base returns a copy of the base URL.
func (c *Client) Base() *url.URL {
	u := *c.base
	return &u
}

// RequestOption holds options for individual HTTP requests
type RequestOption struct {
	header   http.Header
	query    url.Values
	body     io.Reader
	ctype    string
	response any
	sink     io.Writer
}

// WithHeader sets a request header
func WithHeader(key, value string) func(*RequestOption) {
	return func(o *RequestOption) {
		o.header.Set(key, value)
	}
}

// WithBearer 设置 Authorization: Bearer <token>
func WithBearer(token string) func(*RequestOption) {
	return WithHeader("Authorization", "Bearer "+token)
}

func WithQuery(key, value string) func(*RequestOption) {
	return func(o *RequestOption) {
		o.query.Set(key, value)
	}
}

// WithForm 以 application/x-www-form-urlencoded 发送表单
func WithForm(form url.Values) func(*RequestOption) {
	return func(o *RequestOption) {
		o.body = strings.NewReader(form.Encode())
		o.ctype = ContentTypeForm
	}
}

// WithJSON 以 JSON 发送 body
func WithJSON(body any) func(*RequestOption) {
	return func(o *RequestOption) {
		b, err := json.Marshal(body)
		if err != nil {
			o.body = errReader{err}
			return
		}
		o.body = bytes.NewReader(b)
		o.ctype = ContentTypeJSON
	}
}

// WithResponse 2xx 响应体按 JSON 解码到 dest
func WithResponse(dest any) func(*RequestOption) {
	return func(o *RequestOption) {
		o.response = dest
	}
}

// WithSink 2xx 响应体原样写入 w，用于下载
func WithSink(w io.Writer) func(*RequestOption) {
	return func(o *RequestOption) {
		o.sink = w
	}
}

// Do 发送请求。path 相对于 base，已编码的路径段需调用方用 url.PathEscape 处理
func (c *Client) Do(ctx context.Context, method, path string, opts ...func(*RequestOption)) (*http.Response, error) {
	o := &RequestOption{header: make(http.Header), query: make(url.Values)}
	for _, opt := range opts {
		opt(o)
	}
	if er, ok := o.body.(errReader); ok {
		return nil, errors.Wrap(er.err, 400, "encode request body")
	}

	u := c.base.JoinPath(path)
	if len(o.query) > 0 {
		u.RawQuery = o.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), o.body)
	if err != nil {
		return nil, errors.Wrap(err, 400, "build request")
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	for k, v := range o.header {
		req.Header[k] = v
	}
	if o.ctype != "" {
		req.Header.Set("Content-Type", o.ctype)
	}
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.UnknownCode, "%s %s", method, u.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp, errors.HTTPError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	switch {
	case o.sink != nil:
		if _, err := io.Copy(o.sink, resp.Body); err != nil {
			return resp, errors.Wrap(err, errors.UnknownCode, "read response body")
		}
	case o.response != nil:
		if err := json.NewDecoder(resp.Body).Decode(o.response); err != nil {
			return resp, errors.Wrap(err, 502, "decode response body")
		}
	}
	return resp, nil
}

func (c *Client) Get(ctx context.Context, path string, opts ...func(*RequestOption)) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, opts...)
}

func (c *Client) Post(ctx context.Context, path string, opts ...func(*RequestOption)) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, opts...)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
