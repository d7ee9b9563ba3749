package session

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// FileStore keeps the session in a single JSON file. With a key the file is
// sealed with XChaCha20-Poly1305 as nonce||ciphertext.
type FileStore struct {
	mu   sync.Mutex
	path string
	aead cipher.AEAD
}

// NewFileStore opens a store at path. key is nil for plaintext, otherwise
// exactly chacha20poly1305.KeySize bytes.
func NewFileStore(path string, key []byte) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store: empty path")
	}
	fsStore := &FileStore{path: path}
	if len(key) > 0 {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
		fsStore.aead = aead
	}
	return fsStore, nil
}

func (f *FileStore) Get(context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session file: %w", err)
	}
	if f.aead != nil {
		if raw, err = f.open(raw); err != nil {
			return Session{}, err
		}
	}

	var kv map[string]string
	if err := json.Unmarshal(raw, &kv); err != nil {
		return Session{}, fmt.Errorf("decode session file: %w", err)
	}
	s := Session{AccessToken: kv[KeyAccessToken], RefreshToken: kv[KeyRefreshToken]}
	if !s.Valid() {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (f *FileStore) Set(_ context.Context, s Session) error {
	if err := checkComplete(s); err != nil {
		return err
	}
	raw, err := json.Marshal(map[string]string{
		KeyAccessToken:  s.AccessToken,
		KeyRefreshToken: s.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if f.aead != nil {
		nonce := make([]byte, f.aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("session nonce: %w", err)
		}
		raw = f.aead.Seal(nonce, nonce, raw, nil)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return writeAtomic(f.path, raw)
}

func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (f *FileStore) open(raw []byte) ([]byte, error) {
	ns := f.aead.NonceSize()
	if len(raw) < ns {
		return nil, errors.New("session file: truncated")
	}
	plain, err := f.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("session file: %w", err)
	}
	return plain, nil
}

// writeAtomic replaces path via a temp file and rename, so readers never
// observe half a session.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp session: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return nil
}
