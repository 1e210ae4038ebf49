// Package backend 是心电监测后端 REST 接口的客户端。
package backend

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kochabx/cardiac/core/tag"
	xhttp "github.com/kochabx/cardiac/core/net/http"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
)

const (
	tokenPath    = "api/auth/token"
	metadataPath = "api/devices/metadata/"
	savePath     = "api/readings/save/"
	downloadPath = "api/readings/download/"
)

type Client struct {
	cfg  Config
	http *xhttp.Client
}

// New 创建后端客户端，opts 透传给底层 HTTP 客户端
func New(cfg Config, opts ...xhttp.Option) (*Client, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	opts = append([]xhttp.Option{xhttp.WithTimeout(cfg.Timeout)}, opts...)
	hc, err := xhttp.New(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, http: hc}, nil
}

// Token 使用设备编号与密码换取访问令牌
func (c *Client) Token(ctx context.Context, deviceID, password string) (*TokenResponse, error) {
	form := url.Values{
		"username":      {deviceID},
		"password":      {password},
		"grant_type":    {"password"},
		"scope":         {c.cfg.Scope},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	var out TokenResponse
	resp, err := c.http.Post(ctx, tokenPath, xhttp.WithForm(form), xhttp.WithResponse(&out))
	if err != nil {
		status := 0
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			status = resp.StatusCode
		}
		return nil, errors.AuthError(status, err)
	}
	if out.AccessToken == "" {
		return nil, errors.AuthError(0, errors.New(502, "token response without access_token"))
	}
	log.Debug().Str("device_id", deviceID).Msg("token exchange succeeded")
	return &out, nil
}

// Metadata 返回设备的全部会话元数据，顺序与后端一致
func (c *Client) Metadata(ctx context.Context, token, deviceID string) ([]MetadataRecord, error) {
	var out metadataList
	_, err := c.http.Get(ctx, metadataPath+xhttp.PathSegment(deviceID),
		xhttp.WithBearer(token), xhttp.WithResponse(&out))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPersistence 开启或关闭服务端数据持久化，非 admin 令牌返回 403
func (c *Client) SetPersistence(ctx context.Context, token, deviceID string, enable bool) (*SaveResponse, error) {
	var out SaveResponse
	_, err := c.http.Post(ctx, savePath+xhttp.PathSegment(deviceID),
		xhttp.WithBearer(token),
		xhttp.WithQuery("enable", strconv.FormatBool(enable)),
		xhttp.WithResponse(&out))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Download 将会话的 PNG 波形图写入 w
func (c *Client) Download(ctx context.Context, token, sessionID string, w io.Writer) error {
	_, err := c.http.Get(ctx, downloadPath+xhttp.PathSegment(sessionID),
		xhttp.WithBearer(token), xhttp.WithSink(w))
	return err
}

// StreamURL 设备实时数据流地址
func (c *Client) StreamURL(deviceID string) (string, error) {
	return xhttp.WebSocketURL(c.http.Base(), c.cfg.StreamPath, url.Values{"device_id": {deviceID}})
}

// StreamHeader 数据流握手时携带的认证头
func StreamHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
