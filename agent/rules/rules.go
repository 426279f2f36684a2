// Package rules manages the two behavioral rule collections per business:
// active rules injected into prompts, and pending proposals awaiting review.
// Promotion from pending to active happens only through Approve and
// ApproveResponse.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	contractx "github.com/vendra/salescore/agent/contract"
	"github.com/vendra/salescore/pkg/kvstore"
)

const (
	activeKeyPrefix  = "salescore:rules"
	pendingKeyPrefix = "salescore:rules_pending"

	maxActiveRules  = 50
	maxPendingRules = 30

	activeTTL  = 90 * 24 * time.Hour
	pendingTTL = 30 * 24 * time.Hour
)

// activeSet is the persisted shape of the approved collection.
type activeSet struct {
	Rules     []string                      `json:"rules"`
	Responses []contractx.SuggestedResponse `json:"responses,omitempty"`
}

// pendingSet holds everything awaiting review. Rules and suggested responses
// are reviewed independently, each addressed by its own index.
type pendingSet struct {
	Rules     []contractx.PendingRule       `json:"rules"`
	Responses []contractx.SuggestedResponse `json:"responses,omitempty"`
}

// Store is the rule persistence layer. A nil backend yields empty collections
// and drops writes; the pipeline then runs without learned behavior.
type Store struct {
	kv kvstore.Store
}

func New(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

func activeKey(businessID string) string  { return fmt.Sprintf("%s:%s", activeKeyPrefix, businessID) }
func pendingKey(businessID string) string { return fmt.Sprintf("%s:%s", pendingKeyPrefix, businessID) }

func (s *Store) loadActive(ctx context.Context, businessID string) (activeSet, error) {
	var set activeSet
	if s.kv == nil {
		return set, nil
	}
	raw, found, err := s.kv.Get(ctx, activeKey(businessID))
	if err != nil || !found {
		return set, err
	}
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return activeSet{}, fmt.Errorf("decode active rules: %w", err)
	}
	return set, nil
}

func (s *Store) saveActive(ctx context.Context, businessID string, set activeSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode active rules: %w", err)
	}
	return s.kv.Set(ctx, activeKey(businessID), string(raw), activeTTL)
}

func (s *Store) loadPending(ctx context.Context, businessID string) (pendingSet, error) {
	var set pendingSet
	if s.kv == nil {
		return set, nil
	}
	raw, found, err := s.kv.Get(ctx, pendingKey(businessID))
	if err != nil || !found {
		return set, err
	}
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return pendingSet{}, fmt.Errorf("decode pending rules: %w", err)
	}
	return set, nil
}

func (s *Store) savePending(ctx context.Context, businessID string, set pendingSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode pending rules: %w", err)
	}
	return s.kv.Set(ctx, pendingKey(businessID), string(raw), pendingTTL)
}

// Active returns the approved rules and suggested responses for a business.
func (s *Store) Active(ctx context.Context, businessID string) ([]string, []contractx.SuggestedResponse, error) {
	set, err := s.loadActive(ctx, businessID)
	if err != nil {
		return nil, nil, err
	}
	return set.Rules, set.Responses, nil
}

// ListPending returns the rule proposals awaiting review, oldest first.
func (s *Store) ListPending(ctx context.Context, businessID string) ([]contractx.PendingRule, error) {
	set, err := s.loadPending(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return set.Rules, nil
}

// ListPendingResponses returns the suggested responses awaiting review,
// oldest first.
func (s *Store) ListPendingResponses(ctx context.Context, businessID string) ([]contractx.SuggestedResponse, error) {
	set, err := s.loadPending(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return set.Responses, nil
}

// AppendPending records refiner proposals. Rules already present in either
// collection are dropped, so re-proposing is idempotent. When the cap is
// exceeded the oldest pending entries are evicted first.
func (s *Store) AppendPending(ctx context.Context, businessID string, proposed []string, justification string) error {
	if s.kv == nil || len(proposed) == 0 {
		return nil
	}
	pending, err := s.loadPending(ctx, businessID)
	if err != nil {
		return err
	}
	active, err := s.loadActive(ctx, businessID)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(pending.Rules)+len(active.Rules))
	for _, p := range pending.Rules {
		known[p.Rule] = true
	}
	for _, r := range active.Rules {
		known[r] = true
	}

	changed := false
	for _, rule := range proposed {
		if rule == "" || known[rule] {
			continue
		}
		known[rule] = true
		pending.Rules = append(pending.Rules, contractx.PendingRule{
			Rule:          rule,
			Justification: justification,
			Status:        "pending",
		})
		changed = true
	}
	if !changed {
		return nil
	}
	if len(pending.Rules) > maxPendingRules {
		pending.Rules = pending.Rules[len(pending.Rules)-maxPendingRules:]
	}
	return s.savePending(ctx, businessID, pending)
}

// ProposeResponses records refiner-suggested canned responses for review.
// They stay in the pending collection until ApproveResponse promotes them;
// situations already known in either collection are dropped.
func (s *Store) ProposeResponses(ctx context.Context, businessID string, responses []contractx.SuggestedResponse) error {
	if s.kv == nil || len(responses) == 0 {
		return nil
	}
	pending, err := s.loadPending(ctx, businessID)
	if err != nil {
		return err
	}
	active, err := s.loadActive(ctx, businessID)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(pending.Responses)+len(active.Responses))
	for _, r := range pending.Responses {
		known[r.Situation] = true
	}
	for _, r := range active.Responses {
		known[r.Situation] = true
	}

	changed := false
	for _, r := range responses {
		if r.Situation == "" || known[r.Situation] {
			continue
		}
		known[r.Situation] = true
		pending.Responses = append(pending.Responses, r)
		changed = true
	}
	if !changed {
		return nil
	}
	if len(pending.Responses) > maxPendingRules {
		pending.Responses = pending.Responses[len(pending.Responses)-maxPendingRules:]
	}
	return s.savePending(ctx, businessID, pending)
}

// Approve promotes the pending rule at index into the active collection and
// removes it from pending. The active cap evicts oldest rules first.
func (s *Store) Approve(ctx context.Context, businessID string, index int) error {
	pending, err := s.loadPending(ctx, businessID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(pending.Rules) {
		return fmt.Errorf("approve rule: index %d out of range (%d pending)", index, len(pending.Rules))
	}
	rule := pending.Rules[index].Rule

	active, err := s.loadActive(ctx, businessID)
	if err != nil {
		return err
	}
	exists := false
	for _, r := range active.Rules {
		if r == rule {
			exists = true
			break
		}
	}
	if !exists {
		active.Rules = append(active.Rules, rule)
		if len(active.Rules) > maxActiveRules {
			active.Rules = active.Rules[len(active.Rules)-maxActiveRules:]
		}
		if err := s.saveActive(ctx, businessID, active); err != nil {
			return err
		}
	}

	pending.Rules = append(pending.Rules[:index], pending.Rules[index+1:]...)
	return s.savePending(ctx, businessID, pending)
}

// Reject discards the pending rule at index.
func (s *Store) Reject(ctx context.Context, businessID string, index int) error {
	pending, err := s.loadPending(ctx, businessID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(pending.Rules) {
		return fmt.Errorf("reject rule: index %d out of range (%d pending)", index, len(pending.Rules))
	}
	pending.Rules = append(pending.Rules[:index], pending.Rules[index+1:]...)
	return s.savePending(ctx, businessID, pending)
}

// ApproveResponse promotes the pending suggested response at index into the
// active collection.
func (s *Store) ApproveResponse(ctx context.Context, businessID string, index int) error {
	pending, err := s.loadPending(ctx, businessID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(pending.Responses) {
		return fmt.Errorf("approve response: index %d out of range (%d pending)", index, len(pending.Responses))
	}
	resp := pending.Responses[index]

	active, err := s.loadActive(ctx, businessID)
	if err != nil {
		return err
	}
	exists := false
	for _, r := range active.Responses {
		if r.Situation == resp.Situation {
			exists = true
			break
		}
	}
	if !exists {
		active.Responses = append(active.Responses, resp)
		if len(active.Responses) > maxActiveRules {
			active.Responses = active.Responses[len(active.Responses)-maxActiveRules:]
		}
		if err := s.saveActive(ctx, businessID, active); err != nil {
			return err
		}
	}

	pending.Responses = append(pending.Responses[:index], pending.Responses[index+1:]...)
	return s.savePending(ctx, businessID, pending)
}

// RejectResponse discards the pending suggested response at index.
func (s *Store) RejectResponse(ctx context.Context, businessID string, index int) error {
	pending, err := s.loadPending(ctx, businessID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(pending.Responses) {
		return fmt.Errorf("reject response: index %d out of range (%d pending)", index, len(pending.Responses))
	}
	pending.Responses = append(pending.Responses[:index], pending.Responses[index+1:]...)
	return s.savePending(ctx, businessID, pending)
}
