package memory

import (
	"context"
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/database/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) database.Store { return New() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.SaveRepresentative(ctx, database.Representative{
		PersonID: "person_0", Vector: []float32{1, 2}, History: [][]float32{{1, 2}},
	})

	got, _ := s.GetRepresentative(ctx, "person_0")
	got.Vector[0] = 42
	got.History[0][0] = 42

	again, _ := s.GetRepresentative(ctx, "person_0")
	if again.Vector[0] != 1 || again.History[0][0] != 1 {
		t.Errorf("store state mutated through returned value: %+v", again)
	}
}
