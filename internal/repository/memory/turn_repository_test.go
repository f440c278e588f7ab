package memory

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"law-of-the-land-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTurnRepositoryClaim(t *testing.T) {
	repo := NewTurnRepository()
	sessionId := uuid.New()
	turn := &store.TurnState{SessionID: sessionId, UserID: uuid.New(), StartedAt: time.Now()}

	assert.True(t, repo.Claim(turn))
	assert.False(t, repo.Claim(turn), "second claim on the same session must fail")

	got, found := repo.Get(sessionId)
	assert.True(t, found)
	assert.Equal(t, sessionId, got.SessionID)

	repo.Delete(sessionId)
	assert.True(t, repo.Claim(turn), "session is claimable again after release")
}

func TestTurnRepositoryClaimIsAtomic(t *testing.T) {
	repo := NewTurnRepository()
	sessionId := uuid.New()

	var wg sync.WaitGroup
	var claimed int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			turn := &store.TurnState{SessionID: sessionId, UserID: uuid.New(), StartedAt: time.Now()}
			if repo.Claim(turn) {
				atomic.AddInt32(&claimed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), claimed, "exactly one concurrent claim may win")
}
