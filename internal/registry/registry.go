// Package registry keeps the set of device tokens that receive push
// notifications.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrEmptyToken is returned when registering a blank token.
var ErrEmptyToken = errors.New("token is required")

// Registry is a concurrency-safe token set persisted as JSON. An empty file
// path keeps it in memory only.
type Registry struct {
	mu       sync.Mutex
	state    *State
	index    map[string]int
	filePath string
	log      *zap.Logger
}

// New creates a Registry, loading existing devices from disk.
func New(filePath string, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	state := &State{}
	if filePath != "" {
		var err error
		if state, err = LoadState(filePath); err != nil {
			return nil, err
		}
	}
	r := &Registry{state: state, filePath: filePath, log: log}
	r.reindex()
	log.Info("device registry loaded", zap.String("path", filePath), zap.Int("devices", len(state.Devices)))
	return r, nil
}

func (r *Registry) reindex() {
	r.index = make(map[string]int, len(r.state.Devices))
	for i, d := range r.state.Devices {
		r.index[d.Token] = i
	}
}

func (r *Registry) save() error {
	if r.filePath == "" {
		return nil
	}
	return SaveState(r.filePath, r.state)
}

// Register adds a token. It reports false when the token was already known.
func (r *Registry) Register(token, userAgent string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, ErrEmptyToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[token]; ok {
		return false, nil
	}
	r.state.Devices = append(r.state.Devices, Device{
		Token:        token,
		UserAgent:    userAgent,
		RegisteredAt: time.Now().UTC(),
	})
	r.index[token] = len(r.state.Devices) - 1
	if err := r.save(); err != nil {
		r.state.Devices = r.state.Devices[:len(r.state.Devices)-1]
		delete(r.index, token)
		return false, fmt.Errorf("save device registry: %w", err)
	}
	return true, nil
}

// Remove deletes tokens and returns how many were present.
func (r *Registry) Remove(tokens ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if _, ok := r.index[t]; ok {
			drop[t] = true
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}

	kept := r.state.Devices[:0]
	for _, d := range r.state.Devices {
		if !drop[d.Token] {
			kept = append(kept, d)
		}
	}
	r.state.Devices = kept
	r.reindex()
	if err := r.save(); err != nil {
		r.log.Error("failed to save device registry", zap.Error(err))
		return len(drop), err
	}
	return len(drop), nil
}

// Tokens returns a copy of the registered tokens in registration order.
func (r *Registry) Tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.state.Devices))
	for i, d := range r.state.Devices {
		out[i] = d.Token
	}
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.Devices)
}
