package workcode_test

import (
	"context"
	"errors"
	"sync"

	"splitsheet/internal/services"
	"splitsheet/internal/workcode"
)

type memoryHistory struct {
	mu            sync.Mutex
	contributors  map[string]int
	issued        map[workcode.Identifier]workcode.Issued
	failReads     error
	failSequences error
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{
		contributors: make(map[string]int),
		issued:       make(map[workcode.Identifier]workcode.Issued),
	}
}

func (h *memoryHistory) HighestContributorID(context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failReads != nil {
		return 0, h.failReads
	}
	highest := -1
	for _, id := range h.contributors {
		highest = max(highest, id)
	}
	for id := range h.issued {
		highest = max(highest, id.ContributorID)
	}
	return highest, nil
}

func (h *memoryHistory) ContributorID(_ context.Context, key string) (int, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failReads != nil {
		return 0, false, h.failReads
	}
	id, ok := h.contributors[key]
	return id, ok, nil
}

func (h *memoryHistory) RegisterContributor(_ context.Context, key, _ string, id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.contributors[key]; ok {
		return services.ErrConflict
	}
	for _, existing := range h.contributors {
		if existing == id {
			return services.ErrConflict
		}
	}
	h.contributors[key] = id
	return nil
}

func (h *memoryHistory) Sequences(_ context.Context, contributorID, year int) ([]int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failSequences != nil {
		return nil, h.failSequences
	}
	var out []int
	for id := range h.issued {
		if id.ContributorID == contributorID && id.Year == year {
			out = append(out, id.Sequence)
		}
	}
	return out, nil
}

func (h *memoryHistory) RecordIdentifier(_ context.Context, issued workcode.Issued) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := issued.Identifier
	key.Country, key.Registrant = "", ""
	for id := range h.issued {
		probe := id
		probe.Country, probe.Registrant = "", ""
		if probe == key {
			return services.ErrConflict
		}
	}
	h.issued[issued.Identifier] = issued
	return nil
}

var errSequences = errors.New("sequences unavailable")
