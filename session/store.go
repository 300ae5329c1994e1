// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/rpgate/oidc"
)

const keyPrefix = "rpgate:session:"

// Record is what a session holds: at most one pending authentication request
// and at most one encoded principal.
type Record struct {
	Request   *oidc.Request `msgpack:"request,omitempty"`
	Principal []byte        `msgpack:"principal,omitempty"`
}

// IsEmpty returns true when the record holds nothing worth storing.
func (r *Record) IsEmpty() bool {
	return r == nil || (r.Request == nil && len(r.Principal) == 0)
}

// Store persists session records in an eko/gocache backend.  Every mutation
// of a session happens inside Update, which holds that session's lock:
// concurrent updates of the same session are serialized, different sessions
// never contend.
type Store struct {
	cache  *marshaler.Marshaler
	ttl    time.Duration
	locks  *keyedMutex
	logger hclog.Logger
}

// NewStore creates a Store on top of the backend (see NewBackend).
//
// Supported options: WithTTL, WithLogger
func NewStore(backend store.StoreInterface, opt ...Option) (*Store, error) {
	const op = "session.NewStore"
	if backend == nil {
		return nil, fmt.Errorf("%s: backend is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &Store{
		cache:  marshaler.New(cache.New[any](backend)),
		ttl:    opts.withTTL,
		locks:  newKeyedMutex(),
		logger: opts.withLogger,
	}, nil
}

// TTL returns the session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Load returns the session's record, an empty Record when there's none.
// It doesn't take the session's lock: the result is a snapshot.
func (s *Store) Load(ctx context.Context, id string) (*Record, error) {
	const op = "Store.Load"
	if id == "" {
		return nil, fmt.Errorf("%s: session id is empty: %w", op, oidc.ErrInvalidParameter)
	}
	return s.load(ctx, id)
}

// Update runs fn with the session's record while holding the session's lock
// and saves the record fn leaves behind.  An empty record deletes the
// session.  When fn returns an error nothing is saved and the error is
// returned as is.
//
// fn must not block on network calls.
func (s *Store) Update(ctx context.Context, id string, fn func(r *Record) error) error {
	const op = "Store.Update"
	if id == "" {
		return fmt.Errorf("%s: session id is empty: %w", op, oidc.ErrInvalidParameter)
	}
	if fn == nil {
		return fmt.Errorf("%s: update func is nil: %w", op, oidc.ErrNilParameter)
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	r, err := s.load(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := fn(r); err != nil {
		return err
	}
	if r.IsEmpty() {
		if err := s.delete(ctx, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	if err := s.cache.Set(ctx, keyPrefix+id, r, store.WithExpiration(s.ttl)); err != nil {
		return fmt.Errorf("%s: unable to save session: %w", op, err)
	}
	return nil
}

// Delete the session.  Deleting an unknown session isn't an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "Store.Delete"
	if id == "" {
		return fmt.Errorf("%s: session id is empty: %w", op, oidc.ErrInvalidParameter)
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, id string) (*Record, error) {
	v, err := s.cache.Get(ctx, keyPrefix+id, new(Record))
	switch {
	case isNotFound(err):
		return &Record{}, nil
	case err != nil:
		return nil, fmt.Errorf("unable to load session: %w", err)
	}
	r, ok := v.(*Record)
	if !ok || r == nil {
		// unreadable records are treated as missing, they'll be overwritten
		s.logger.Warn("discarding unreadable session record", "type", fmt.Sprintf("%T", v))
		return &Record{}, nil
	}
	return r, nil
}

func (s *Store) delete(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, keyPrefix+id); err != nil && !isNotFound(err) {
		return fmt.Errorf("unable to delete session: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *store.NotFound
	return errors.As(err, &nf)
}
