package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
)

// Persistent is the best-effort JSON layer over a KV backend. Reads never fail:
// absent or corrupt values load as empty. Write failures are logged and swallowed,
// which leaves the caller's in-memory state as the only copy for the session.
type Persistent struct {
	kv  KV
	log *slog.Logger
}

func NewPersistent(kv KV, log *slog.Logger) *Persistent {
	return &Persistent{kv: kv, log: log}
}

// LoadList returns the list stored under key, or an empty list.
func LoadList[T any](ctx context.Context, p *Persistent, key string) []T {
	items := []T{}
	if !p.loadJSON(ctx, key, &items) || items == nil {
		return []T{}
	}
	return items
}

// SaveList writes items under key. It reports whether the write reached the backend.
func SaveList[T any](ctx context.Context, p *Persistent, key string, items []T) bool {
	if items == nil {
		items = []T{}
	}
	return p.saveJSON(ctx, key, items)
}

// LoadObject decodes the value under key into out. It reports whether a valid value was found.
func (p *Persistent) LoadObject(ctx context.Context, key string, out any) bool {
	return p.loadJSON(ctx, key, out)
}

func (p *Persistent) SaveObject(ctx context.Context, key string, v any) bool {
	return p.saveJSON(ctx, key, v)
}

// LoadFloat reads a scalar stored as a decimal string. Absent or corrupt values read as 0.
func (p *Persistent) LoadFloat(ctx context.Context, key string) float64 {
	data, ok := p.get(ctx, key)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		p.log.WarnContext(ctx, "discarding corrupt scalar", slog.String("key", key), slog.Any("error", err))
		return 0
	}
	return f
}

func (p *Persistent) SaveFloat(ctx context.Context, key string, v float64) bool {
	return p.set(ctx, key, []byte(strconv.FormatFloat(v, 'f', -1, 64)))
}

func (p *Persistent) Remove(ctx context.Context, key string) bool {
	if err := p.kv.Delete(ctx, key); err != nil {
		p.log.ErrorContext(ctx, "state delete failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (p *Persistent) loadJSON(ctx context.Context, key string, out any) bool {
	data, ok := p.get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		p.log.WarnContext(ctx, "discarding corrupt state", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (p *Persistent) saveJSON(ctx context.Context, key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.ErrorContext(ctx, "state encode failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return p.set(ctx, key, data)
}

func (p *Persistent) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := p.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		p.log.ErrorContext(ctx, "state read failed", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return data, true
}

func (p *Persistent) set(ctx context.Context, key string, data []byte) bool {
	if err := p.kv.Set(ctx, key, data); err != nil {
		p.log.ErrorContext(ctx, "state write failed, keeping in memory only",
			slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}
