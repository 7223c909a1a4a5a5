package sources

import (
	"context"
	"testing"

	"github.com/kotoba-labs/classroom-engine/internal/bank"
	"github.com/kotoba-labs/classroom-engine/internal/sampler"
	"github.com/kotoba-labs/classroom-engine/internal/store"
)

func seedDB(t *testing.T) (*FlashcardProvider, *BankProvider) {
	t.Helper()
	db, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	seed := []struct{ id, front, back string }{
		{"c1", "犬", "dog"},
		{"c2", "猫", "cat"},
		{"c3", "鳥", "bird"},
	}
	for _, s := range seed {
		if _, err := db.Exec(`INSERT INTO flashcards (id, level, front, back) VALUES ($1,'N5',$2,$3)`,
			s.id, s.front, s.back); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if _, err := db.Exec(`INSERT INTO bank_questions (id, level, prompt, options_json, correct_answer, points)
		VALUES ('b1','N5','choose','["a","b","c"]','2',5)`); err != nil {
		t.Fatalf("seed bank: %v", err)
	}
	return NewFlashcardProvider(db), NewBankProvider(db)
}

func TestFlashcardProvider(t *testing.T) {
	prov, _ := seedDB(t)
	qs, err := prov.Questions(context.Background(), "N5")
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("got %d questions, want 3", len(qs))
	}
	for _, q := range qs {
		if q.Type != bank.TypeText || q.Points != bank.DefaultPoints {
			t.Fatalf("unexpected conversion: %+v", q)
		}
	}
	none, err := prov.Questions(context.Background(), "N1")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty pool for N1, got %d, err %v", len(none), err)
	}
}

func TestBankProvider(t *testing.T) {
	_, prov := seedDB(t)
	qs, err := prov.Questions(context.Background(), "N5")
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	if len(qs) != 1 || qs[0].Type != bank.TypeMultipleChoice || len(qs[0].Options) != 3 {
		t.Fatalf("unexpected pool: %+v", qs)
	}
	if qs[0].Points != 5 {
		t.Fatalf("points = %v, want 5", qs[0].Points)
	}
}

func TestRegistryPoolsFixedOrder(t *testing.T) {
	fc, bq := seedDB(t)
	reg := NewRegistry(fc, bq)
	pools, err := reg.Pools(context.Background(), "N5", map[sampler.SourceKind]float64{
		sampler.SourceBank:      40,
		sampler.SourceFlashcard: 60,
	})
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("got %d pools, want 2", len(pools))
	}
	// flashcards always precede bank regardless of map iteration order
	if pools[0].Kind != sampler.SourceFlashcard || pools[1].Kind != sampler.SourceBank {
		t.Fatalf("pool order: %s, %s", pools[0].Kind, pools[1].Kind)
	}
	if pools[0].MixPercent != 60 || pools[1].MixPercent != 40 {
		t.Fatalf("mix percents lost: %+v", pools)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Pools(context.Background(), "N5", map[sampler.SourceKind]float64{sampler.SourceTemplate: 100})
	if err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}
