// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
)

var (
	ErrNotFound      = errors.New("media item not found")
	ErrInvalidRecord = errors.New("invalid media record")
	ErrNoStorage     = errors.New("record needs object storage but none is configured")
)

// Record maps an item to its durable media. Exactly one of SourceURL and
// StorageKey is set.
type Record struct {
	ItemID     string    `json:"itemId"`
	SourceURL  string    `json:"sourceUrl,omitempty"`
	StorageKey string    `json:"storageKey,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.ItemID) == "" {
		return fmt.Errorf("%w: itemId is required", ErrInvalidRecord)
	}
	switch {
	case r.SourceURL != "" && r.StorageKey != "":
		return fmt.Errorf("%w: sourceUrl and storageKey are mutually exclusive", ErrInvalidRecord)
	case r.SourceURL != "":
		ref := media.Parse(r.SourceURL)
		if ref.Kind != media.KindDurable {
			return fmt.Errorf("%w: sourceUrl must be an http(s) URL", ErrInvalidRecord)
		}
		if p := media.Validate(ref, media.Anonymous); p != media.ProblemNone {
			return fmt.Errorf("%w: sourceUrl is not presentable (%s)", ErrInvalidRecord, p)
		}
	case r.StorageKey != "":
		if strings.HasPrefix(r.StorageKey, "/") {
			return fmt.Errorf("%w: storageKey must be relative", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: one of sourceUrl or storageKey is required", ErrInvalidRecord)
	}
	return nil
}

// Store is the remote source of truth.
type Store interface {
	Get(ctx context.Context, itemID string) (Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, itemID string) error
	Close() error
}
