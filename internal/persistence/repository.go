// Package persistence keeps an audit log of service requests. Only inputs, timing and the
// outcome code are stored; computed results are never persisted.
package persistence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

const DefaultListLimit = 100

var ErrRequestAlreadyExists = errors.New("request already recorded")

type Operation string

const (
	OperationEvaluate  Operation = "evaluate"
	OperationCompare   Operation = "compare"
	OperationEquity    Operation = "equity"
	OperationOuts      Operation = "outs"
	OperationCanonical Operation = "canonical"
)

type RequestRecord struct {
	ID        string
	Operation Operation
	// Input is the request body as JSON.
	Input      []byte
	Code       string
	HTTPStatus int
	Duration   time.Duration
	ReceivedAt time.Time
}

type ListFilter struct {
	Operation Operation
	Limit     int
}

func (f ListFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

type Repository interface {
	RecordRequest(ctx context.Context, record RequestRecord) error
	GetRequest(ctx context.Context, id string) (RequestRecord, bool, error)
	// ListRequests returns the newest records first.
	ListRequests(ctx context.Context, filter ListFilter) ([]RequestRecord, error)
}

type inMemoryRepository struct {
	mu sync.RWMutex

	requests map[string]RequestRecord
}

func NewInMemoryRepository() Repository {
	return &inMemoryRepository{
		requests: make(map[string]RequestRecord),
	}
}

func (r *inMemoryRepository) RecordRequest(_ context.Context, record RequestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[record.ID]; exists {
		return ErrRequestAlreadyExists
	}
	r.requests[record.ID] = cloneRequestRecord(record)
	return nil
}

func (r *inMemoryRepository) GetRequest(_ context.Context, id string) (RequestRecord, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.requests[id]
	if !ok {
		return RequestRecord{}, false, nil
	}
	return cloneRequestRecord(record), true, nil
}

func (r *inMemoryRepository) ListRequests(_ context.Context, filter ListFilter) ([]RequestRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RequestRecord, 0, len(r.requests))
	for _, record := range r.requests {
		if filter.Operation != "" && record.Operation != filter.Operation {
			continue
		}
		out = append(out, cloneRequestRecord(record))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func cloneRequestRecord(record RequestRecord) RequestRecord {
	out := record
	out.Input = append([]byte(nil), record.Input...)
	return out
}
