// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog resolves item ids to durable media references. The remote
// store is the source of truth; a local cache sits in front of it with an
// explicit staleness bound.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/bus"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/cache"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/metrics"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/resilience"
)

const (
	DefaultMaxStaleness  = 30 * time.Second
	DefaultCacheTTL      = 10 * time.Minute
	DefaultPresignExpiry = 15 * time.Minute

	DefaultBreakerThreshold = 5
	DefaultBreakerReset     = 30 * time.Second

	SourceLocal  = "local"
	SourceRemote = "remote"

	cacheKeyPrefix = "catalog:item:"
	publishTimeout = 250 * time.Millisecond
)

// Presigner turns a storage key into a time-limited URL.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type Options struct {
	Cache         cache.Cache
	Presigner     Presigner
	Bus           bus.Bus
	MaxStaleness  time.Duration
	CacheTTL      time.Duration
	PresignExpiry time.Duration
	// Breaker guards remote reads. Not-found answers count as healthy.
	Breaker       *resilience.CircuitBreaker
	Now           func() time.Time
	Logger        *zerolog.Logger
}

// Resolved is a playable durable reference for one item.
type Resolved struct {
	ItemID    string          `json:"itemId"`
	Reference media.Reference `json:"-"`
	Source    string          `json:"source"`
	SyncedAt  time.Time       `json:"syncedAt"`
	// ExpiresAt is set for presigned references.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// cachedEntry is what the local cache holds. SyncedAt is when the record was
// last read from or written to the remote store.
type cachedEntry struct {
	Record   Record    `json:"record"`
	SyncedAt time.Time `json:"syncedAt"`
}

type Catalog struct {
	store  Store
	opts   Options
	logger zerolog.Logger
	group  singleflight.Group
}

func New(store Store, opts Options) *Catalog {
	if opts.Cache == nil {
		opts.Cache = cache.NewNoOpCache()
	}
	if opts.MaxStaleness <= 0 {
		opts.MaxStaleness = DefaultMaxStaleness
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = DefaultPresignExpiry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("catalog", DefaultBreakerThreshold, DefaultBreakerReset)
	}
	logger := xglog.WithComponent("catalog")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Catalog{store: store, opts: opts, logger: logger}
}

// Resolve returns the durable reference for itemID. A cached record younger
// than MaxStaleness is served locally; anything older is reconciled against
// the remote store and the remote answer wins. If the remote store fails, a
// stale local record is served rather than nothing.
func (c *Catalog) Resolve(ctx context.Context, itemID string) (Resolved, error) {
	local, haveLocal := c.readCache(ctx, itemID)
	if haveLocal {
		if c.opts.Now().Sub(local.SyncedAt) <= c.opts.MaxStaleness {
			metrics.IncCacheLookup("hit")
			return c.resolveRecord(ctx, local, SourceLocal)
		}
		metrics.IncCacheLookup("stale")
	} else {
		metrics.IncCacheLookup("miss")
	}

	entry, err := c.fetchRemote(ctx, itemID)
	switch {
	case err == nil:
		return c.resolveRecord(ctx, entry, SourceRemote)
	case errors.Is(err, ErrNotFound):
		metrics.IncCatalogResolve(SourceRemote, "not_found")
		return Resolved{}, err
	case haveLocal:
		c.logger.Warn().Err(err).Str(xglog.FieldItemID, itemID).
			Time("synced_at", local.SyncedAt).
			Msg("catalog remote unavailable, serving stale entry")
		return c.resolveRecord(ctx, local, SourceLocal)
	default:
		metrics.IncCatalogResolve(SourceRemote, "error")
		return Resolved{}, err
	}
}

// Get reads the record straight from the remote store.
func (c *Catalog) Get(ctx context.Context, itemID string) (Record, error) {
	return c.store.Get(ctx, itemID)
}

// Put writes the remote store first, then drops the local copy and announces
// the change.
func (c *Catalog) Put(ctx context.Context, rec Record) (Record, error) {
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	if rec.StorageKey != "" && c.opts.Presigner == nil {
		return Record{}, ErrNoStorage
	}
	rec.UpdatedAt = c.opts.Now().UTC()
	if err := c.store.Put(ctx, rec); err != nil {
		return Record{}, err
	}
	c.opts.Cache.Delete(ctx, cacheKey(rec.ItemID))
	c.publish(bus.MediaUpdated{ItemID: rec.ItemID, At: rec.UpdatedAt})
	c.logger.Info().Str(xglog.FieldItemID, rec.ItemID).Msg("catalog record updated")
	return rec, nil
}

func (c *Catalog) Delete(ctx context.Context, itemID string) error {
	if err := c.store.Delete(ctx, itemID); err != nil {
		return err
	}
	c.opts.Cache.Delete(ctx, cacheKey(itemID))
	c.publish(bus.MediaUpdated{ItemID: itemID, Deleted: true, At: c.opts.Now().UTC()})
	c.logger.Info().Str(xglog.FieldItemID, itemID).Msg("catalog record deleted")
	return nil
}

func (c *Catalog) fetchRemote(ctx context.Context, itemID string) (cachedEntry, error) {
	v, err, shared := c.group.Do(itemID, func() (any, error) {
		var rec Record
		var getErr error
		err := c.opts.Breaker.Execute(func() error {
			rec, getErr = c.store.Get(ctx, itemID)
			if errors.Is(getErr, ErrNotFound) {
				return nil
			}
			return getErr
		})
		if err == nil {
			err = getErr
		}
		if errors.Is(err, ErrNotFound) {
			c.opts.Cache.Delete(ctx, cacheKey(itemID))
			return nil, err
		}
		if err != nil {
			return nil, err
		}
		entry := cachedEntry{Record: rec, SyncedAt: c.opts.Now()}
		c.writeCache(ctx, entry)
		return entry, nil
	})
	if err != nil {
		return cachedEntry{}, err
	}
	if shared {
		c.logger.Debug().Str(xglog.FieldItemID, itemID).Msg("catalog remote read shared")
	}
	return v.(cachedEntry), nil
}

func (c *Catalog) resolveRecord(ctx context.Context, entry cachedEntry, source string) (Resolved, error) {
	rec := entry.Record
	out := Resolved{ItemID: rec.ItemID, Source: source, SyncedAt: entry.SyncedAt}
	if rec.StorageKey == "" {
		out.Reference = media.Parse(rec.SourceURL)
		metrics.IncCatalogResolve(source, "ok")
		return out, nil
	}
	if c.opts.Presigner == nil {
		metrics.IncCatalogResolve(source, "error")
		return Resolved{}, ErrNoStorage
	}
	url, err := c.opts.Presigner.PresignGet(ctx, rec.StorageKey, c.opts.PresignExpiry)
	if err != nil {
		metrics.IncCatalogResolve(source, "error")
		return Resolved{}, fmt.Errorf("presign %s: %w", rec.ItemID, err)
	}
	out.Reference = media.Parse(url)
	out.ExpiresAt = c.opts.Now().Add(c.opts.PresignExpiry)
	metrics.IncCatalogResolve(source, "ok")
	return out, nil
}

func (c *Catalog) readCache(ctx context.Context, itemID string) (cachedEntry, bool) {
	raw, ok := c.opts.Cache.Get(ctx, cacheKey(itemID))
	if !ok {
		return cachedEntry{}, false
	}
	var entry cachedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldItemID, itemID).Msg("catalog cache entry unreadable")
		c.opts.Cache.Delete(ctx, cacheKey(itemID))
		return cachedEntry{}, false
	}
	return entry, true
}

func (c *Catalog) writeCache(ctx context.Context, entry cachedEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	c.opts.Cache.Set(ctx, cacheKey(entry.Record.ItemID), raw, c.opts.CacheTTL)
}

func (c *Catalog) publish(ev bus.Event) {
	if c.opts.Bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.opts.Bus.Publish(ctx, ev); err != nil {
		c.logger.Warn().Err(err).Str("kind", string(ev.Kind())).Msg("catalog publish failed")
	}
}

// HealthCheck delegates to the store when it supports one.
func (c *Catalog) HealthCheck(ctx context.Context) error {
	if hc, ok := c.store.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func cacheKey(itemID string) string { return cacheKeyPrefix + itemID }
