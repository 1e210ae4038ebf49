// Package store 持久化客户端会话凭据（令牌、设备编号、角色）。
package store

import (
	"context"

	"github.com/kochabx/cardiac/errors"
)

// 与网页端 localStorage 一致的键名
const (
	KeyAccessToken = "cardiac_ai_access_token"
	KeyDeviceID    = "cardiac_ai_device_id"
	KeyRole        = "cardiac_ai_role"
)

// Storage 字符串键值存储。Get 在键不存在时返回 errors.ErrNotFound
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Value 读取键，不存在时返回空字符串
func Value(ctx context.Context, s Storage, key string) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, errors.ErrNotFound) {
		return "", nil
	}
	return v, err
}
