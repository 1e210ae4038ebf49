// Package file 将会话凭据保存在本地 JSON 文件中，可选用口令加密。
package file

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/kochabx/cardiac/errors"
)

// Config 文件存储配置
type Config struct {
	Path string `json:"path" mapstructure:"path" default:"$HOME/.cardiac/session.json"`
	// Passphrase 非空时文件内容使用 argon2id 派生的密钥以 XChaCha20-Poly1305 加密
	Passphrase string `json:"passphrase" mapstructure:"passphrase"`
}

// argon2id 参数
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltSize     = 16
)

type envelope struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

type Store struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
}

// New path 中的环境变量会被展开，父目录不存在时创建
func New(cfg Config) (*Store, error) {
	path := os.ExpandEnv(cfg.Path)
	if path == "" {
		return nil, errors.New(400, "file store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, 500, "create store directory")
	}
	s := &Store{path: path}
	if cfg.Passphrase != "" {
		s.passphrase = []byte(cfg.Passphrase)
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok {
		return "", errors.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = value
	return s.save(m)
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.save(m)
}

func (s *Store) Close() error { return nil }

func (s *Store) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, 500, "read %s", s.path)
	}
	if len(raw) == 0 {
		return map[string]string{}, nil
	}

	if s.passphrase != nil {
		raw, err = s.open(raw)
		if err != nil {
			return nil, err
		}
	}
	m := map[string]string{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, 500, "decode %s", s.path)
	}
	return m, nil
}

// save 先写临时文件再 rename，避免中途崩溃留下半个文件
func (s *Store) save(m map[string]string) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, 500, "encode store")
	}
	if s.passphrase != nil {
		if raw, err = s.seal(raw); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return errors.Wrap(err, 500, "create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.Wrap(err, 500, "write temp file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, 500, "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, 500, "close temp file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, 500, "replace %s", s.path)
	}
	return nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, 500, "generate salt")
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, 500, "generate nonce")
	}
	aead, err := chacha20poly1305.NewX(deriveKey(s.passphrase, salt))
	if err != nil {
		return nil, errors.Wrap(err, 500, "init cipher")
	}
	return json.Marshal(envelope{
		Version: 1,
		Salt:    salt,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, plain, []byte(s.path)),
	})
}

func (s *Store) open(raw []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Version != 1 {
		return nil, errors.New(500, "%s is not an encrypted session file", s.path)
	}
	aead, err := chacha20poly1305.NewX(deriveKey(s.passphrase, env.Salt))
	if err != nil {
		return nil, errors.Wrap(err, 500, "init cipher")
	}
	plain, err := aead.Open(nil, env.Nonce, env.Data, []byte(s.path))
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("decrypt: %w", err), 401, "wrong passphrase for %s", s.path)
	}
	return plain, nil
}
