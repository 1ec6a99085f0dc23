package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dalemusser/scratchstarter/internal/app/system/envresolve"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Selector builds persistence handles from an environment snapshot.
// It is created once at process start; its lifetime is the memoization scope.
type Selector struct {
	env     envresolve.Snapshot
	mode    envresolve.Mode
	log     *zap.Logger
	openers map[Kind]Opener

	mu      sync.Mutex
	handles map[Kind]*Handle
	group   singleflight.Group
}

// Option customizes a Selector.
type Option func(*Selector)

// WithOpener replaces the opener for a kind.
func WithOpener(kind Kind, open Opener) Option {
	return func(s *Selector) { s.openers[kind] = open }
}

// NewSelector returns a Selector reading connection info from env.
func NewSelector(env envresolve.Snapshot, mode envresolve.Mode, logger *zap.Logger, opts ...Option) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Selector{
		env:  env,
		mode: mode,
		log:  logger,
		openers: map[Kind]Opener{
			Networked: OpenPostgres,
			Embedded:  OpenLibSQL,
		},
		handles: make(map[Kind]*Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the handle for kind, building it on first use.
// Concurrent first calls share one construction.
func (s *Selector) Select(ctx context.Context, kind Kind) (*Handle, error) {
	if h := s.cached(kind); h != nil {
		return h, nil
	}

	v, err, _ := s.group.Do(string(kind), func() (any, error) {
		if h := s.cached(kind); h != nil {
			return h, nil
		}

		open, ok := s.openers[kind]
		if !ok {
			return nil, fmt.Errorf("unknown database kind %q", kind)
		}
		conn, err := s.ConnInfo(kind)
		if err != nil {
			return nil, err
		}

		h, err := open(ctx, conn)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.handles[kind] = h
		s.mu.Unlock()

		s.log.Info("database handle ready",
			zap.String("kind", string(kind)),
			zap.String("dialect", h.Dialect),
			zap.String("mode", string(s.mode)))
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// ConnInfo resolves the connection settings for kind.
//
// Networked: DATABASE_URL in development, the platform's pooled binding
// string otherwise. Embedded: DATABASE_URL plus DATABASE_AUTH_TOKEN, where
// the token is required only for remote replica URLs.
func (s *Selector) ConnInfo(kind Kind) (ConnInfo, error) {
	switch kind {
	case Networked:
		key := envresolve.HyperdriveConnString
		if s.mode == envresolve.Development {
			key = envresolve.DatabaseURL
		}
		url, ok := s.env.Lookup(key)
		if !ok {
			return ConnInfo{}, &ConfigError{Kind: kind, Missing: []string{key}}
		}
		return ConnInfo{URL: url}, nil

	case Embedded:
		url, ok := s.env.Lookup(envresolve.DatabaseURL)
		if !ok {
			return ConnInfo{}, &ConfigError{Kind: kind, Missing: []string{envresolve.DatabaseURL}}
		}
		token, hasToken := s.env.Lookup(envresolve.DatabaseAuthToken)
		if isRemoteURL(url) && !hasToken {
			return ConnInfo{}, &ConfigError{Kind: kind, Missing: []string{envresolve.DatabaseAuthToken}}
		}
		return ConnInfo{URL: url, AuthToken: token}, nil
	}
	return ConnInfo{}, fmt.Errorf("unknown database kind %q", kind)
}

// Close closes every handle built so far.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for kind, h := range s.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", kind, err))
		}
		delete(s.handles, kind)
	}
	return errors.Join(errs...)
}

func (s *Selector) cached(kind Kind) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[kind]
}
