// Package tokenstore persists OAuth tokens between process runs, one entry per
// service. The persisted copy is only a warm-start cache for the in-memory
// credential an authentication strategy owns.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Load when nothing is stored for a service.
	ErrNotFound = errors.New("tokenstore: no token stored")
	// ErrCorrupt is returned by Load when stored data cannot be decrypted or decoded.
	ErrCorrupt = errors.New("tokenstore: stored token unreadable")
)

// Token is the persisted credential snapshot.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	// Expiry is epoch seconds.
	Expiry      int64  `json:"expiry"`
	InstanceURL string `json:"instance_url,omitempty"`
}

// ExpiryTime returns Expiry as a time.Time, zero when unset.
func (t *Token) ExpiryTime() time.Time {
	if t.Expiry == 0 {
		return time.Time{}
	}
	return time.Unix(t.Expiry, 0)
}

type Store interface {
	Load(ctx context.Context, service string) (*Token, error)
	Save(ctx context.Context, service string, tok *Token) error
	Delete(ctx context.Context, service string) error
}

// Backend stores opaque blobs by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Compile-time interface check.
var _ Store = (*Codec)(nil)

// Codec is a Store that JSON-encodes tokens and optionally seals them before
// handing them to a Backend.
type Codec struct {
	backend Backend
	sealer  *Sealer
}

// New returns a Store over backend. A nil sealer stores plaintext JSON.
func New(backend Backend, sealer *Sealer) *Codec {
	return &Codec{backend: backend, sealer: sealer}
}

func (c *Codec) Load(ctx context.Context, service string) (*Token, error) {
	data, err := c.backend.Get(ctx, service)
	if err != nil {
		return nil, err
	}
	if c.sealer != nil {
		data, err = c.sealer.Open(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &tok, nil
}

func (c *Codec) Save(ctx context.Context, service string, tok *Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("tokenstore: encode token: %w", err)
	}
	if c.sealer != nil {
		data, err = c.sealer.Seal(data)
		if err != nil {
			return err
		}
	}
	return c.backend.Put(ctx, service, data)
}

func (c *Codec) Delete(ctx context.Context, service string) error {
	return c.backend.Delete(ctx, service)
}
