package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// per-user session file (0600) with AES-GCM obfuscated values.
// Not a replacement for OS keychains but keeps the token out of plain text.

const fileName = "session.json"

type sessionFile struct {
	Values map[string]string `json:"values"` // key -> base64(ciphertext)
}

// FileStore is a session store persisted as one JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
	key  []byte
}

// DefaultPath returns the session file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ledgerview", fileName), nil
}

// NewFileStore opens (without creating) the store at path. An empty
// passphrase derives the key from the OS user.
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil { // restrict directory
		return nil, err
	}
	return &FileStore{path: path, key: masterKey(passphrase)}, nil
}

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := load(s.path)
	if err != nil {
		return "", false, err
	}
	enc, ok := sf.Values[key]
	if !ok {
		return "", false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", false, fmt.Errorf("decode %s: %w", key, err)
	}
	pt, err := decrypt(s.key, raw)
	if err != nil {
		return "", false, fmt.Errorf("decrypt %s: %w", key, err)
	}
	return string(pt), true, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := load(s.path)
	if err != nil {
		return err
	}
	if sf.Values == nil {
		sf.Values = map[string]string{}
	}
	ct, err := encrypt(s.key, []byte(value))
	if err != nil {
		return err
	}
	sf.Values[key] = base64.StdEncoding.EncodeToString(ct)
	return save(s.path, sf)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := load(s.path)
	if err != nil {
		return err
	}
	if _, ok := sf.Values[key]; !ok {
		return nil
	}
	delete(sf.Values, key)
	return save(s.path, sf)
}

func load(path string) (sessionFile, error) {
	var sf sessionFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sessionFile{}, nil
		}
		return sf, err
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		return sf, err
	}
	return sf, nil
}

func save(path string, sf sessionFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func masterKey(passphrase string) []byte {
	base := passphrase
	if base == "" {
		base = fmt.Sprintf("ledgerview-%s-%s", runtime.GOOS, os.Getenv("USER"))
	}
	hash := sha256.Sum256([]byte(base))
	return hash[:]
}

func encrypt(key, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func decrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	body := ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
