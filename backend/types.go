package backend

import (
	"encoding/json"
	"strings"
	"time"
)

// Role 账户角色，只有 admin 可以切换数据持久化
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole 未知或为空的角色按 user 处理
func ParseRole(s string) Role {
	if Role(strings.ToLower(strings.TrimSpace(s))) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// TokenResponse POST /api/auth/token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role,omitempty"`
}

// MetadataRecord GET /api/devices/metadata/{deviceId} 列表中的一项。
// 只有最新一条记录可能携带 save_status
type MetadataRecord struct {
	ID         string `json:"_id,omitempty"`
	DeviceID   string `json:"device_id"`
	SessionID  string `json:"session_id"`
	Timestamp  string `json:"timestamp"`
	ECGArrayID string `json:"ecg_array_id,omitempty"`
	SaveStatus *bool  `json:"save_status,omitempty"`
}

// Time 解析 timestamp，无时区的时间按 UTC 处理，无法解析时返回零值
func (r MetadataRecord) Time() time.Time {
	return ParseTimestamp(r.Timestamp)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// metadataList 兼容后端返回单个对象而不是数组的情况
type metadataList []MetadataRecord

func (l *metadataList) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "{") {
		var one MetadataRecord
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*l = metadataList{one}
		return nil
	}
	var many []MetadataRecord
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// SaveResponse POST /api/readings/save/{deviceId}
type SaveResponse struct {
	DeviceID     string `json:"device_id"`
	StoreEnabled bool   `json:"store_enabled"`
	SessionID    string `json:"session_id,omitempty"`
}
