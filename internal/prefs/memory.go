package prefs

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Memory keeps preferences in process memory.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// SetIfGreater stores value under key when it beats the stored integer.
func (m *Memory) SetIfGreater(_ context.Context, key string, value int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if raw, ok := m.values[key]; ok {
		cur, err := strconv.Atoi(raw)
		if err != nil {
			return false, fmt.Errorf("parse %s=%q: %w", key, raw, err)
		}
		if value <= cur {
			return false, nil
		}
	}
	m.values[key] = strconv.Itoa(value)
	return true, nil
}

func (m *Memory) Close() error { return nil }
