// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package blob holds session-local binaries in an in-memory Badger database
// and hands out "blob:" references for them.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/metrics"
)

const (
	DefaultOrigin   = "https://reelplay.local"
	DefaultMaxBytes = 16 << 20

	metaPrefix = "meta:"
	dataPrefix = "data:"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrTooLarge   = errors.New("blob exceeds size limit")
	ErrForbidden  = errors.New("blob belongs to another viewer")
	ErrInvalidRef = errors.New("not a blob reference")
)

type Config struct {
	Origin   string
	MaxBytes int64
}

// Meta describes a stored binary.
type Meta struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store is safe for concurrent use. Nothing survives Close.
type Store struct {
	db       *badger.DB
	origin   string
	maxBytes int64
	logger   zerolog.Logger
}

func Open(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return &Store{
		db:       db,
		origin:   strings.TrimRight(cfg.Origin, "/"),
		maxBytes: cfg.MaxBytes,
		logger:   logger.With().Str(xglog.FieldComponent, "blob").Logger(),
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// HealthCheck fails once the store is closed.
func (s *Store) HealthCheck(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("blob store closed")
	}
	return nil
}

// Reference builds the session-local reference for id.
func (s *Store) Reference(id string) media.Reference {
	return media.Parse(media.SessionLocalScheme + s.origin + "/" + id)
}

// ParseID extracts the blob id from a session-local reference.
func ParseID(ref media.Reference) (string, error) {
	if !ref.SessionLocal() {
		return "", ErrInvalidRef
	}
	i := strings.LastIndexByte(ref.Source, '/')
	if i < 0 {
		return "", ErrInvalidRef
	}
	id := ref.Source[i+1:]
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	return id, nil
}

// Put stores everything read from r and returns its reference.
func (s *Store) Put(ctx context.Context, owner string, r io.Reader, contentType string) (media.Reference, Meta, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return media.Reference{}, Meta{}, fmt.Errorf("read blob: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return media.Reference{}, Meta{}, fmt.Errorf("%w (max %d bytes)", ErrTooLarge, s.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return media.Reference{}, Meta{}, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	meta := Meta{
		ID:          uuid.NewString(),
		Owner:       owner,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	}
	buf, err := json.Marshal(meta)
	if err != nil {
		return media.Reference{}, Meta{}, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(metaPrefix+meta.ID), buf); err != nil {
			return err
		}
		return txn.Set([]byte(dataPrefix+meta.ID), data)
	})
	if err != nil {
		return media.Reference{}, Meta{}, fmt.Errorf("store blob: %w", err)
	}

	metrics.AddBlobBytes(meta.Size)
	metrics.SetBlobsHeld(s.Count())
	s.logger.Debug().
		Str(xglog.FieldBlobID, meta.ID).
		Str(xglog.FieldViewerID, owner).
		Int64("size", meta.Size).
		Msg("blob stored")
	return s.Reference(meta.ID), meta, nil
}

// Stat returns metadata for ref.
func (s *Store) Stat(_ context.Context, ref media.Reference) (Meta, error) {
	id, err := ParseID(ref)
	if err != nil {
		return Meta{}, err
	}
	var meta Meta
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		meta, err = getMeta(txn, id)
		return err
	})
	return meta, err
}

// Open returns the binary behind ref. A non-empty owner must match the
// creator; internal readers pass "".
func (s *Store) Open(_ context.Context, ref media.Reference, owner string) (io.ReadCloser, Meta, error) {
	id, err := ParseID(ref)
	if err != nil {
		return nil, Meta{}, err
	}
	var (
		meta Meta
		data []byte
	)
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		if meta, err = getMeta(txn, id); err != nil {
			return err
		}
		if owner != "" && meta.Owner != owner {
			return ErrForbidden
		}
		item, err := txn.Get([]byte(dataPrefix + id))
		if err != nil {
			return mapErr(err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, Meta{}, err
	}
	return io.NopCloser(bytes.NewReader(data)), meta, nil
}

// Release drops the binary behind ref. Unknown references are not an
// error, so repeated releases are harmless.
func (s *Store) Release(ctx context.Context, ref media.Reference) error {
	return s.ReleaseFor(ctx, ref, "")
}

// ReleaseFor is Release scoped to owner: a blob created by another viewer is
// left in place. An empty owner releases unconditionally.
func (s *Store) ReleaseFor(_ context.Context, ref media.Reference, owner string) error {
	id, err := ParseID(ref)
	if err != nil {
		metrics.IncBlobRelease("unknown")
		return nil
	}
	outcome := "unknown"
	err = s.db.Update(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if owner != "" && meta.Owner != owner {
			outcome = "foreign"
			return nil
		}
		outcome = "released"
		if err := txn.Delete([]byte(metaPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(dataPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("release blob %s: %w", id, err)
	}
	metrics.IncBlobRelease(outcome)
	switch outcome {
	case "released":
		metrics.SetBlobsHeld(s.Count())
		s.logger.Debug().Str(xglog.FieldBlobID, id).Msg("blob released")
	case "foreign":
		s.logger.Debug().Str(xglog.FieldBlobID, id).Str(xglog.FieldViewerID, owner).Msg("blob release skipped: owned by another viewer")
	}
	return nil
}

// ReleaseOwner drops every blob created by owner and reports how many went.
func (s *Store) ReleaseOwner(ctx context.Context, owner string) (int, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(metaPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var meta Meta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return err
			}
			if meta.Owner == owner {
				ids = append(ids, meta.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan blobs: %w", err)
	}
	for _, id := range ids {
		if err := s.ReleaseFor(ctx, s.Reference(id), owner); err != nil {
			return 0, err
		}
	}
	if len(ids) > 0 {
		s.logger.Info().Str(xglog.FieldViewerID, owner).Int("count", len(ids)).Msg("released viewer blobs")
	}
	return len(ids), nil
}

// Count reports how many blobs are held.
func (s *Store) Count() int {
	n := 0
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(metaPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n
}

func getMeta(txn *badger.Txn, id string) (Meta, error) {
	var meta Meta
	item, err := txn.Get([]byte(metaPrefix + id))
	if err != nil {
		return meta, mapErr(err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	return meta, err
}

func mapErr(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}
