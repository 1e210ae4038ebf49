// Package backendtest 提供内存实现的心电后端，用于客户端测试。
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/kochabx/cardiac/backend"
)

var secret = []byte("backendtest")

// Device 注册的设备账户
type Device struct {
	Password string
	Role     backend.Role
	// OmitRole 为 true 时令牌响应不带 role 字段，角色只能从 JWT 中读取
	OmitRole bool
}

// Server 模拟后端。所有字段在 Start 之后通过方法并发安全地修改
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	devices  map[string]Device
	metadata map[string][]backend.MetadataRecord
	pngs     map[string][]byte
	saveErr  int
	frames   map[string]chan string
	closeWS  map[string]int

	saveGate chan struct{}

	MetadataCalls atomic.Int64
	SaveCalls     atomic.Int64
	SaveQueries   chan string
	StreamOpens   atomic.Int64
}

func New() *Server {
	s := &Server{
		devices:     make(map[string]Device),
		metadata:    make(map[string][]backend.MetadataRecord),
		pngs:        make(map[string][]byte),
		frames:      make(map[string]chan string),
		closeWS:     make(map[string]int),
		SaveQueries: make(chan string, 64),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/token", s.token)
	mux.HandleFunc("GET /api/devices/metadata/{id}", s.auth(s.getMetadata))
	mux.HandleFunc("POST /api/readings/save/{id}", s.auth(s.save))
	mux.HandleFunc("GET /api/readings/download/{id}", s.auth(s.download))
	mux.HandleFunc("GET /ws/frontend", s.auth(s.stream))
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) AddDevice(id string, d Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[id] = d
}

func (s *Server) SetMetadata(id string, records ...backend.MetadataRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[id] = records
}

func (s *Server) SetPNG(sessionID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pngs[sessionID] = data
}

// FailSaves 后续保存请求返回 status，0 表示恢复正常
func (s *Server) FailSaves(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = status
}

// HoldSaves 之后的保存请求阻塞，直到向返回的通道发送一个值
func (s *Server) HoldSaves() chan<- struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveGate = make(chan struct{})
	return s.saveGate
}

// Frames 设备数据流的发送端，写入的每个字符串作为一帧发送
func (s *Server) Frames(deviceID string) chan<- string {
	return s.framesFor(deviceID)
}

// CloseStream 以 code 关闭设备当前的数据流
func (s *Server) CloseStream(deviceID string, code int) {
	s.mu.Lock()
	s.closeWS[deviceID] = code
	s.mu.Unlock()
	s.framesFor(deviceID) <- ""
}

func (s *Server) framesFor(id string) chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.frames[id]
	if !ok {
		ch = make(chan string, 256)
		s.frames[id] = ch
	}
	return ch
}

// IssueToken 签发与后端格式一致的 JWT
func IssueToken(deviceID string, role backend.Role, ttl time.Duration) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"device_id": deviceID,
		"role":      string(role),
		"exp":       time.Now().Add(ttl).Unix(),
	})
	signed, _ := tok.SignedString(secret)
	return signed
}

type claims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "password" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid form"})
		return
	}
	id := r.PostForm.Get("username")
	s.mu.Lock()
	d, ok := s.devices[id]
	s.mu.Unlock()
	if !ok || d.Password != r.PostForm.Get("password") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
		return
	}
	resp := backend.TokenResponse{AccessToken: IssueToken(id, d.Role, time.Hour), TokenType: "bearer"}
	if !d.OmitRole {
		resp.Role = string(d.Role)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) auth(next func(http.ResponseWriter, *http.Request, *claims)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		var c claims
		if _, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return secret, nil }); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		next(w, r, &c)
	}
}

func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request, _ *claims) {
	s.MetadataCalls.Add(1)
	s.mu.Lock()
	records, ok := s.metadata[r.PathValue("id")]
	s.mu.Unlock()
	if !ok || len(records) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No metadata found"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, c *claims) {
	s.SaveCalls.Add(1)
	select {
	case s.SaveQueries <- r.URL.RawQuery:
	default:
	}
	s.mu.Lock()
	gate := s.saveGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if c.Role != string(backend.RoleAdmin) {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Not enough permissions"})
		return
	}
	s.mu.Lock()
	status := s.saveErr
	s.mu.Unlock()
	if status != 0 {
		writeJSON(w, status, map[string]string{"detail": "save failed"})
		return
	}
	enable, _ := strconv.ParseBool(r.URL.Query().Get("enable"))
	resp := backend.SaveResponse{DeviceID: r.PathValue("id"), StoreEnabled: enable}
	if enable {
		resp.SessionID = "session-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request, _ *claims) {
	id := r.PathValue("id")
	s.mu.Lock()
	data, ok := s.pngs[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Session not found"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", "attachment; filename=ecg_session_"+id+".png")
	_, _ = w.Write(data)
}

var upgrader = websocket.Upgrader{}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, _ *claims) {
	id := r.URL.Query().Get("device_id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	if id == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Missing device_id"))
		return
	}
	s.StreamOpens.Add(1)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	frames := s.framesFor(id)
	for {
		select {
		case <-gone:
			return
		case f := <-frames:
			s.mu.Lock()
			code, closing := s.closeWS[id]
			delete(s.closeWS, id)
			s.mu.Unlock()
			if closing {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
