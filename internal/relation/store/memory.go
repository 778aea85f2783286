package store

import (
	"context"
	"slices"
	"sync"

	"healthlink/internal/relation/models"
	"healthlink/pkg/platform/sentinel"
)

// InMemoryStore holds identifiers and events in maps. Identifier ownership
// is not forced unique, so conflicting data can be seeded for tests.
type InMemoryStore struct {
	mu          sync.RWMutex
	identifiers map[models.Identifier][]models.IndividualID
	events      map[models.IndividualID][]models.Event
	nextEventID int64
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		identifiers: make(map[models.Identifier][]models.IndividualID),
		events:      make(map[models.IndividualID][]models.Event),
	}
}

// AddIdentifier links an identifier to an individual. The value is
// normalized the way requests are.
func (s *InMemoryStore) AddIdentifier(id models.IndividualID, idType, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.Identifier{Type: idType, Value: models.Normalize(idType, value)}
	if !slices.Contains(s.identifiers[key], id) {
		s.identifiers[key] = append(s.identifiers[key], id)
	}
}

// AddEvent stores e, assigning an id when e.ID is zero.
func (s *InMemoryStore) AddEvent(e models.Event) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		s.nextEventID++
		e.ID = s.nextEventID
	} else if e.ID > s.nextEventID {
		s.nextEventID = e.ID
	}
	s.events[e.IndividualID] = append(s.events[e.IndividualID], e)
	return e
}

func (s *InMemoryStore) RunInReadTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *InMemoryStore) FindIndividuals(_ context.Context, set models.IdentifierSet) ([]models.IndividualID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[models.IndividualID]struct{}{}
	var out []models.IndividualID
	for _, id := range set.Items() {
		for _, owner := range s.identifiers[id] {
			if _, ok := seen[owner]; ok {
				continue
			}
			seen[owner] = struct{}{}
			out = append(out, owner)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *InMemoryStore) FindTopEvent(_ context.Context, id models.IndividualID, eventType models.EventType) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.Event
	for _, e := range s.events[id] {
		if e.Type != eventType || !e.Method.Eligible() {
			continue
		}
		if best == nil || e.Outranks(*best) {
			e := e
			best = &e
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	return best, nil
}
