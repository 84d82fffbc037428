// Package kv provides the key-value persistence collaborator used by the
// session store. Backends are interchangeable: durable (file, sqlite),
// in-memory, or absent entirely.
package kv

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// ErrUnavailable is returned by every operation of the Unavailable store.
// Callers that persist best-effort should treat it as a silent no-op.
var ErrUnavailable = errors.New("kv: store unavailable")

// Store is an opaque get/set/delete map of string keys to string values.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Keys() ([]string, error)
}

// Memory is an in-process Store. It is the degraded mode used when no
// durable storage exists: the conversation survives for the lifetime of
// the process only.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// Unavailable models an environment with no persistence collaborator at all.
// Every operation fails with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Get(string) (string, error) { return "", ErrUnavailable }
func (Unavailable) Set(string, string) error   { return ErrUnavailable }
func (Unavailable) Delete(string) error        { return ErrUnavailable }
func (Unavailable) Keys() ([]string, error)    { return nil, ErrUnavailable }
