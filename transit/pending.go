package transit

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/disarticulate/moleculer/errors"
)

// Result delivers the terminal outcome of an outbound request. Err is set on
// failure; on success Err is nil and Data holds the response data, which is
// empty when the peer sent none.
type Result struct {
	Data json.RawMessage
	Err  error
}

// pendingRequest is one in-flight outbound call awaiting its RESPONSE.
type pendingRequest struct {
	id     string
	action string
	nodeID string
	done   chan Result
}

func newPendingRequest(id, action, nodeID string) *pendingRequest {
	return &pendingRequest{
		id:     id,
		action: action,
		nodeID: nodeID,
		// Buffered so completion never blocks on a slow caller
		done: make(chan Result, 1),
	}
}

// pendingStore is the correlation table for in-flight requests, keyed by id.
// All operations are mutually exclusive; an entry leaves the table through
// exactly one terminal event.
type pendingStore struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
	limit   int
	onSize  func(int)
}

// newPendingStore creates a table capped at limit entries. Zero means
// unbounded. onSize, when non-nil, observes every occupancy change.
func newPendingStore(limit int, onSize func(int)) *pendingStore {
	return &pendingStore{
		entries: make(map[string]*pendingRequest),
		limit:   limit,
		onSize:  onSize,
	}
}

// Insert adds an in-flight request. It fails with QueueFullError when the
// table is at its cap, and rejects duplicate correlation ids.
func (s *pendingStore) Insert(p *pendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && len(s.entries) >= s.limit {
		return &errors.QueueFullError{
			Action: p.action,
			NodeID: p.nodeID,
			Size:   len(s.entries),
			Limit:  s.limit,
		}
	}
	if _, exists := s.entries[p.id]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("duplicate request id %q", p.id),
			"pendingStore", "Insert", "register pending request")
	}

	s.entries[p.id] = p
	s.notifySize()
	return nil
}

// Remove drops an entry without completing it. Idempotent.
func (s *pendingStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		delete(s.entries, id)
		s.notifySize()
	}
}

// CompleteSuccess removes the entry and resolves its completion with data.
// Returns false when the id is unknown (already swept or timed out).
func (s *pendingStore) CompleteSuccess(id string, data json.RawMessage) bool {
	p := s.take(id)
	if p == nil {
		return false
	}
	p.done <- Result{Data: data}
	return true
}

// CompleteFailure removes the entry and rejects its completion with err.
// Returns false when the id is unknown.
func (s *pendingStore) CompleteFailure(id string, err error) bool {
	p := s.take(id)
	if p == nil {
		return false
	}
	p.done <- Result{Err: err}
	return true
}

// CancelByNode sweeps every entry targeted at nodeID, rejecting each with
// RequestRejected. Returns the number of swept entries.
func (s *pendingStore) CancelByNode(nodeID string) int {
	s.mu.Lock()
	var swept []*pendingRequest
	for id, p := range s.entries {
		if p.nodeID == nodeID {
			delete(s.entries, id)
			swept = append(swept, p)
		}
	}
	if len(swept) > 0 {
		s.notifySize()
	}
	s.mu.Unlock()

	for _, p := range swept {
		p.done <- Result{Err: &errors.RequestRejectedError{Action: p.action, NodeID: p.nodeID}}
	}
	return len(swept)
}

// Len returns the current table occupancy.
func (s *pendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// take removes and returns the entry for id, or nil.
func (s *pendingStore) take(id string) *pendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.entries[id]
	if !exists {
		return nil
	}
	delete(s.entries, id)
	s.notifySize()
	return p
}

// notifySize must be called with the lock held.
func (s *pendingStore) notifySize() {
	if s.onSize != nil {
		s.onSize(len(s.entries))
	}
}
