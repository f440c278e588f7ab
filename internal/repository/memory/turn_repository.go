package memory

import (
	"time"

	"law-of-the-land-be/pkg/store"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// TurnRepository tracks in-flight turns per session. Entries expire after an
// hour so an abandoned turn cannot block a session forever.
type TurnRepository struct {
	cache *cache.Cache
}

func NewTurnRepository() *TurnRepository {
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &TurnRepository{
		cache: c,
	}
}

// Claim atomically marks a session's turn as in flight. It reports false
// when another turn already holds the session, so two concurrent requests
// can never both pass the guard.
func (r *TurnRepository) Claim(turn *store.TurnState) bool {
	return r.cache.Add(turn.SessionID.String(), turn, cache.DefaultExpiration) == nil
}

func (r *TurnRepository) Save(turn *store.TurnState) {
	r.cache.Set(turn.SessionID.String(), turn, cache.DefaultExpiration)
}

func (r *TurnRepository) Get(sessionID uuid.UUID) (*store.TurnState, bool) {
	if x, found := r.cache.Get(sessionID.String()); found {
		return x.(*store.TurnState), true
	}
	return nil, false
}

func (r *TurnRepository) Delete(sessionID uuid.UUID) {
	r.cache.Delete(sessionID.String())
}
