package store

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"pactindex/entity"
)

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Framework(ctx, "0xaa"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Framework err = %v, want ErrNotFound", err)
	}
	if _, err := m.Agreement(ctx, "0xaa"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Agreement err = %v, want ErrNotFound", err)
	}
	if _, err := m.Settlement(ctx, "0xaa"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Settlement err = %v, want ErrNotFound", err)
	}
}

func TestMemoryPutThenGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := &entity.Agreement{
		ID:        "0xc8",
		Framework: "0xaa",
		Criteria:  big.NewInt(1000),
		Status:    entity.AgreementCreated,
		CreatedAt: big.NewInt(1000),
	}
	if err := m.PutAgreement(ctx, in); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := m.Agreement(ctx, "0xc8")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Framework != "0xaa" || out.Criteria.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("row = %+v", out)
	}
}

func TestMemoryUpsertOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.PutDispute(ctx, &entity.Dispute{ID: "0xc8", CreatedAt: big.NewInt(1)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.PutDispute(ctx, &entity.Dispute{ID: "0xc8", CreatedAt: big.NewInt(2), Resolution: "0xr"}); err != nil {
		t.Fatalf("put again: %v", err)
	}

	out, err := m.Dispute(ctx, "0xc8")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.CreatedAt.Cmp(big.NewInt(2)) != 0 || out.Resolution != "0xr" {
		t.Errorf("row = %+v", out)
	}

	counts, err := m.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Disputes != 1 {
		t.Errorf("disputes = %d, want 1", counts.Disputes)
	}
}

func TestMemoryCopiesRows(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := &entity.AgreementPosition{ID: "p1", Collateral: big.NewInt(100)}
	if err := m.PutPosition(ctx, in); err != nil {
		t.Fatalf("put: %v", err)
	}
	in.Collateral.SetInt64(999)

	out, err := m.Position(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Collateral.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("stored collateral mutated through caller pointer: %s", out.Collateral)
	}

	out.Collateral.SetInt64(5)
	again, _ := m.Position(ctx, "p1")
	if again.Collateral.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("stored collateral mutated through returned pointer: %s", again.Collateral)
	}
}

func TestMemoryHonorsContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.PutFramework(ctx, &entity.AgreementFramework{ID: "0xaa"}); !errors.Is(err, context.Canceled) {
		t.Errorf("put err = %v, want context.Canceled", err)
	}
	if _, err := m.Counts(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("counts err = %v, want context.Canceled", err)
	}
}

func TestMemoryConcurrentWriters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = m.PutSettlement(ctx, &entity.Settlement{
					ID:          "0xbb01",
					SubmittedAt: big.NewInt(n),
					Status:      entity.SettlementSubmitted,
				})
				_, _ = m.Settlement(ctx, "0xbb01")
			}
		}(int64(i))
	}
	wg.Wait()

	if _, err := m.Settlement(ctx, "0xbb01"); err != nil {
		t.Fatalf("get after concurrent writes: %v", err)
	}
}
