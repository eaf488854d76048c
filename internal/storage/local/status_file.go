package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// statusDocument is the on-disk layout of the status file.
type statusDocument struct {
	Completed []string `json:"completed"`
	Skipped   []string `json:"skipped"`
	Failed    []string `json:"failed"`
}

// StatusFile tracks the final state of every website across runs. Each
// website appears in exactly one list.
type StatusFile struct {
	mu    sync.Mutex
	path  string
	state map[string]crawler.RoutingStatus
	order []string
}

var _ crawler.StatusTracker = (*StatusFile)(nil)

// OpenStatusFile loads path, starting empty when it does not exist.
func OpenStatusFile(path string) (*StatusFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("status path is required")
	}
	s := &StatusFile{path: path, state: map[string]crawler.RoutingStatus{}}

	// #nosec G304 -- the status path comes from operator configuration.
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read status file: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return s, nil
	}
	var doc statusDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode status file: %w", err)
	}
	for _, group := range []struct {
		keys   []string
		status crawler.RoutingStatus
	}{
		{doc.Completed, crawler.RoutingSuccess},
		{doc.Skipped, crawler.RoutingSkipped},
		{doc.Failed, crawler.RoutingFailed},
	} {
		for _, key := range group.keys {
			s.set(key, group.status)
		}
	}
	return s, nil
}

// Status implements crawler.StatusTracker.
func (s *StatusFile) Status(website string) (crawler.RoutingStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.state[website]
	return status, ok
}

// Mark implements crawler.StatusTracker and persists the file.
func (s *StatusFile) Mark(website string, status crawler.RoutingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(website, status)
	return s.save()
}

// Counts reports how many websites sit in each state.
func (s *StatusFile) Counts() map[crawler.RoutingStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[crawler.RoutingStatus]int{}
	for _, status := range s.state {
		counts[status]++
	}
	return counts
}

func (s *StatusFile) set(key string, status crawler.RoutingStatus) {
	if _, seen := s.state[key]; !seen {
		s.order = append(s.order, key)
	}
	s.state[key] = status
}

func (s *StatusFile) save() error {
	doc := statusDocument{Completed: []string{}, Skipped: []string{}, Failed: []string{}}
	for _, key := range s.order {
		switch s.state[key] {
		case crawler.RoutingSuccess:
			doc.Completed = append(doc.Completed, key)
		case crawler.RoutingSkipped:
			doc.Skipped = append(doc.Skipped, key)
		case crawler.RoutingFailed:
			doc.Failed = append(doc.Failed, key)
		}
	}
	slices.Sort(doc.Completed)
	slices.Sort(doc.Skipped)
	slices.Sort(doc.Failed)

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status file: %w", err)
	}
	return WriteFileAtomic(s.path, raw)
}
