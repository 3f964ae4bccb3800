package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/request"
	"github.com/frahmantamala/procurement-workflow/internal/store"
)

const (
	KeyPrefix = "request:"
	// maxAttempts bounds the read-modify-CAS loop before reporting a version conflict.
	maxAttempts = 5
)

func Key(id string) string {
	return KeyPrefix + id
}

// RequestRepository implements request.Repository on top of a store.KV.
type RequestRepository struct {
	kv     store.KV
	logger *slog.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(kv store.KV, logger *slog.Logger) *RequestRepository {
	return &RequestRepository{kv: kv, logger: logger}
}

// Create stores req only if its id is still free.
func (r *RequestRepository) Create(ctx context.Context, req *request.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return internal.NewInternalError("failed to encode request", err)
	}

	ok, err := r.kv.CompareAndSwap(ctx, Key(req.ID), nil, data)
	if err != nil {
		return internal.NewUpstreamError(err)
	}
	if !ok {
		return request.ErrRequestExists
	}
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*request.Request, error) {
	_, req, err := r.load(ctx, id)
	return req, err
}

// List decodes every request:* document, newest first.
func (r *RequestRepository) List(ctx context.Context) ([]*request.Request, error) {
	keys, err := r.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, internal.NewUpstreamError(err)
	}

	requests := make([]*request.Request, 0, len(keys))
	for _, key := range keys {
		raw, err := r.kv.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			// deleted between Keys and Get
			continue
		}
		if err != nil {
			return nil, internal.NewUpstreamError(err)
		}

		var req request.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			r.logger.ErrorContext(ctx, "skipping undecodable request document", "key", key, "error", err)
			continue
		}
		requests = append(requests, &req)
	}

	sort.SliceStable(requests, func(i, j int) bool {
		if requests[i].RequestDate.Equal(requests[j].RequestDate) {
			return requests[i].ID < requests[j].ID
		}
		return requests[i].RequestDate.After(requests[j].RequestDate)
	})
	return requests, nil
}

// Update re-reads the document on every attempt so mutate always sees the latest state.
func (r *RequestRepository) Update(ctx context.Context, id string, mutate func(*request.Request) error) (*request.Request, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prev, req, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := mutate(req); err != nil {
			return nil, err
		}
		req.ID = id
		req.Version++

		next, err := json.Marshal(req)
		if err != nil {
			return nil, internal.NewInternalError("failed to encode request", err)
		}

		ok, err := r.kv.CompareAndSwap(ctx, Key(id), prev, next)
		if err != nil {
			return nil, internal.NewUpstreamError(err)
		}
		if ok {
			return req, nil
		}
		r.logger.DebugContext(ctx, "request changed concurrently, retrying", "request_id", id, "attempt", attempt)
	}
	return nil, request.ErrVersionConflict
}

// Delete removes the document only in the state guard accepted; a concurrent write re-runs guard.
func (r *RequestRepository) Delete(ctx context.Context, id string, guard func(*request.Request) error) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prev, req, err := r.load(ctx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(req); err != nil {
				return err
			}
		}

		ok, err := r.kv.DeleteIf(ctx, Key(id), prev)
		if err != nil {
			return internal.NewUpstreamError(err)
		}
		if ok {
			return nil
		}
		r.logger.DebugContext(ctx, "request changed before delete, retrying", "request_id", id, "attempt", attempt)
	}
	return request.ErrVersionConflict
}

func (r *RequestRepository) load(ctx context.Context, id string) ([]byte, *request.Request, error) {
	raw, err := r.kv.Get(ctx, Key(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, request.ErrRequestNotFound
	}
	if err != nil {
		return nil, nil, internal.NewUpstreamError(err)
	}

	var req request.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, nil, internal.NewUpstreamError(fmt.Errorf("decode %s: %w", Key(id), err))
	}
	return raw, &req, nil
}

var _ request.Repository = (*RequestRepository)(nil)
