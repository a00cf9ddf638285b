package credential

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCorrupt is returned when the credential file cannot be decrypted or decoded.
var ErrCorrupt = errors.New("credential: stored file is corrupt or was written with another key")

// Key derivation parameters (argon2id, RFC 9106 second recommended option).
const (
	fileFormat   byte = 1
	saltSize          = 16
	argonTime         = 3
	argonMemory       = 64 * 1024
	argonThreads      = 4
)

// FileStore keeps the credential in a single file encrypted with XChaCha20-Poly1305
// under a key derived from a passphrase with argon2id.
// The file layout is version || salt || nonce || ciphertext.
type FileStore struct {
	path       string
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	aead cipher.AEAD
}

// NewFileStore returns a store rooted at path. The key is derived lazily, once per salt.
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("credential: file path required")
	}
	if passphrase == "" {
		return nil, errors.New("credential: passphrase required")
	}
	return &FileStore{path: path, passphrase: []byte(passphrase)}, nil
}

// cipherFor returns the AEAD for salt, reusing the cached one when the salt matches.
// Callers hold s.mu.
func (s *FileStore) cipherFor(salt []byte) (cipher.AEAD, error) {
	if s.aead != nil && bytes.Equal(salt, s.salt) {
		return s.aead, nil
	}
	key := argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("credential: init cipher: %w", err)
	}
	s.salt = append([]byte(nil), salt...)
	s.aead = aead
	return aead, nil
}

// Get reads and decrypts the file. A missing file is an empty store.
func (s *FileStore) Get(ctx context.Context) (Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, fmt.Errorf("credential: read %s: %w", s.path, err)
	}
	if len(raw) < 1+saltSize || raw[0] != fileFormat {
		return Credential{}, false, ErrCorrupt
	}
	aead, err := s.cipherFor(raw[1 : 1+saltSize])
	if err != nil {
		return Credential{}, false, err
	}
	sealed := raw[1+saltSize:]
	ns := aead.NonceSize()
	if len(sealed) < ns {
		return Credential{}, false, ErrCorrupt
	}
	plain, err := aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return Credential{}, false, ErrCorrupt
	}
	var c Credential
	if err := json.Unmarshal(plain, &c); err != nil {
		return Credential{}, false, ErrCorrupt
	}
	return c, !c.IsZero(), nil
}

// Set encrypts c and atomically replaces the file.
func (s *FileStore) Set(ctx context.Context, c Credential) error {
	if c.IsZero() {
		return ErrEmptyToken
	}
	plain, err := json.Marshal(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	salt := s.salt
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("credential: salt: %w", err)
		}
	}
	aead, err := s.cipherFor(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("credential: nonce: %w", err)
	}
	out := make([]byte, 0, 1+saltSize+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, fileFormat)
	out = append(out, salt...)
	out = append(out, nonce...)
	sealed := aead.Seal(out, nonce, plain, nil)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("credential: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credential-*")
	if err != nil {
		return fmt.Errorf("credential: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Clear removes the file.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credential: remove %s: %w", s.path, err)
	}
	return nil
}
