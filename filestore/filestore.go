// Package filestore abstracts the external object store that holds
// evidence and listing images. The service only handles opaque object
// keys; file bytes never pass through the core.
package filestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the object-store contract consumed by the services.
type Store interface {
	Put(ctx context.Context, r io.Reader, contentType string) (string, error)
	ResolveURL(key string) string
	Delete(ctx context.Context, key string) error
}

// HTTPStore talks to the storage gateway over HTTP.
type HTTPStore struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPStore constructs a storage client with sane defaults.
func NewHTTPStore(baseURL, token string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Put uploads the object and returns the opaque key assigned by the
// gateway.
func (s *HTTPStore) Put(ctx context.Context, r io.Reader, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/objects", r)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("filestore: upload returned status %d", resp.StatusCode)
	}
	key, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(key)), nil
}

// ResolveURL maps an opaque key to its public URL.
func (s *HTTPStore) ResolveURL(key string) string {
	if key == "" {
		return ""
	}
	return s.baseURL + "/objects/" + key
}

// Delete removes the object. Missing objects are not an error.
func (s *HTTPStore) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/objects/"+key, nil)
	if err != nil {
		return err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("filestore: delete returned status %d", resp.StatusCode)
	}
	return nil
}

// Memory is an in-memory Store used by tests. It is safe for concurrent
// use.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Put implements Store by buffering the object in memory.
func (m *Memory) Put(_ context.Context, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := "mem/" + uuid.NewString()
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return key, nil
}

// ResolveURL implements Store.
func (m *Memory) ResolveURL(key string) string {
	if key == "" {
		return ""
	}
	return "memory://" + key
}

// Delete implements Store and records the key for assertions.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

// Deleted returns the keys removed so far.
func (m *Memory) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deleted))
	copy(out, m.deleted)
	return out
}
