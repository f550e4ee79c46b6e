package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func runRepositoryContractTests(t *testing.T, mkRepo func(t *testing.T) Repository) {
	t.Helper()

	t.Run("Contract_RecordAndGetRequest", func(t *testing.T) {
		repo := mkRepo(t)
		ctx := context.Background()
		rec := newRequestRecord(OperationEquity, time.Now())
		if err := repo.RecordRequest(ctx, rec); err != nil {
			t.Fatalf("RecordRequest failed: %v", err)
		}

		got, ok, err := repo.GetRequest(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if !ok {
			t.Fatal("expected request record to exist")
		}
		assertRequestRecordEqual(t, rec, got)
	})

	t.Run("Contract_GetMissingRequest", func(t *testing.T) {
		repo := mkRepo(t)
		_, ok, err := repo.GetRequest(context.Background(), uuid.NewString())
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if ok {
			t.Fatal("expected missing record")
		}
	})

	t.Run("Contract_DuplicateRequestID", func(t *testing.T) {
		repo := mkRepo(t)
		ctx := context.Background()
		rec := newRequestRecord(OperationOuts, time.Now())
		if err := repo.RecordRequest(ctx, rec); err != nil {
			t.Fatalf("RecordRequest failed: %v", err)
		}
		if err := repo.RecordRequest(ctx, rec); !errors.Is(err, ErrRequestAlreadyExists) {
			t.Fatalf("expected ErrRequestAlreadyExists, got %v", err)
		}
	})

	t.Run("Contract_ListNewestFirstWithFilterAndLimit", func(t *testing.T) {
		repo := mkRepo(t)
		ctx := context.Background()
		base := time.Now().Add(-time.Hour)
		ops := []Operation{OperationEvaluate, OperationEquity, OperationEquity, OperationCompare, OperationEquity}
		ids := make([]string, len(ops))
		for i, op := range ops {
			rec := newRequestRecord(op, base.Add(time.Duration(i)*time.Minute))
			ids[i] = rec.ID
			if err := repo.RecordRequest(ctx, rec); err != nil {
				t.Fatalf("RecordRequest %d failed: %v", i, err)
			}
		}

		all, err := repo.ListRequests(ctx, ListFilter{})
		if err != nil {
			t.Fatalf("ListRequests failed: %v", err)
		}
		if len(all) != len(ops) {
			t.Fatalf("expected %d records, got %d", len(ops), len(all))
		}
		if all[0].ID != ids[4] || all[len(all)-1].ID != ids[0] {
			t.Fatalf("expected newest first, got first=%s last=%s", all[0].ID, all[len(all)-1].ID)
		}

		equity, err := repo.ListRequests(ctx, ListFilter{Operation: OperationEquity, Limit: 2})
		if err != nil {
			t.Fatalf("ListRequests failed: %v", err)
		}
		if len(equity) != 2 {
			t.Fatalf("expected 2 equity records, got %d", len(equity))
		}
		if equity[0].ID != ids[4] || equity[1].ID != ids[2] {
			t.Fatalf("expected the two newest equity records, got %s and %s", equity[0].ID, equity[1].ID)
		}
	})
}

func newRequestRecord(op Operation, at time.Time) RequestRecord {
	return RequestRecord{
		ID:         uuid.NewString(),
		Operation:  op,
		Input:      []byte(`{"players":["14h 14d","13h 13d"],"board":""}`),
		Code:       "ok",
		HTTPStatus: 200,
		Duration:   1500 * time.Microsecond,
		ReceivedAt: at.UTC().Truncate(time.Microsecond),
	}
}

func assertRequestRecordEqual(t *testing.T, want, got RequestRecord) {
	t.Helper()
	if got.ID != want.ID || got.Operation != want.Operation || got.Code != want.Code || got.HTTPStatus != want.HTTPStatus {
		t.Fatalf("record mismatch: want %+v, got %+v", want, got)
	}
	if string(got.Input) != string(want.Input) {
		t.Fatalf("input mismatch: want %s, got %s", want.Input, got.Input)
	}
	if got.Duration != want.Duration {
		t.Fatalf("duration mismatch: want %v, got %v", want.Duration, got.Duration)
	}
	if !got.ReceivedAt.Equal(want.ReceivedAt) {
		t.Fatalf("received_at mismatch: want %v, got %v", want.ReceivedAt, got.ReceivedAt)
	}
}
