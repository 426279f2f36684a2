// Package memory persists the per-lead conversation record. Every accessor
// degrades gracefully: a missing or unreachable store yields a fresh default
// so a turn never fails because persistence is down.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/vendra/salescore/agent/contract"
	"github.com/vendra/salescore/pkg/kvstore"
)

const (
	keyPrefix = "salescore:memory"
	memoryTTL = 30 * 24 * time.Hour
)

// listFields are the memory fields merged as append-if-absent lists.
var listFields = map[string]bool{
	"products_viewed":      true,
	"followups_sent":       true,
	"detected_preferences": true,
	"objections":           true,
}

// Store reads and writes LeadMemory records in a key-value backend.
type Store struct {
	kv  kvstore.Store
	now func() time.Time
}

// New builds a memory store. kv may be nil, in which case every read returns
// the default record and writes are dropped.
func New(kv kvstore.Store) *Store {
	return &Store{kv: kv, now: time.Now}
}

func memoryKey(businessID, leadID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, businessID, leadID)
}

func (s *Store) defaultMemory(businessID, leadID string) *contractx.LeadMemory {
	now := s.now().UTC().Format(time.RFC3339)
	return &contractx.LeadMemory{
		LeadID:        leadID,
		BusinessID:    businessID,
		CurrentStage:  "new",
		CollectedData: map[string]any{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Get loads the memory for a lead. It never fails: store misses, store
// errors, and corrupt payloads all produce a fresh default record.
func (s *Store) Get(ctx context.Context, businessID, leadID string) *contractx.LeadMemory {
	if s.kv == nil {
		return s.defaultMemory(businessID, leadID)
	}
	raw, found, err := s.kv.Get(ctx, memoryKey(businessID, leadID))
	if err != nil {
		log.Warn().Err(err).Str("lead_id", leadID).Msg("memory read failed, using default")
		return s.defaultMemory(businessID, leadID)
	}
	if !found {
		return s.defaultMemory(businessID, leadID)
	}
	var mem contractx.LeadMemory
	if err := json.Unmarshal([]byte(raw), &mem); err != nil {
		log.Warn().Err(err).Str("lead_id", leadID).Msg("memory payload corrupt, using default")
		return s.defaultMemory(businessID, leadID)
	}
	mem.LeadID = leadID
	mem.BusinessID = businessID
	if mem.CollectedData == nil {
		mem.CollectedData = map[string]any{}
	}
	return &mem
}

// Save writes the record back with the rolling TTL.
func (s *Store) Save(ctx context.Context, mem *contractx.LeadMemory) error {
	if s.kv == nil {
		return nil
	}
	mem.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	raw, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	if err := s.kv.Set(ctx, memoryKey(mem.BusinessID, mem.LeadID), string(raw), memoryTTL); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

// Update applies a partial patch and persists the result. List fields merge
// by appending values not already present; collected_data merges key by key;
// scalar fields overwrite. The interaction count bumps on every call.
func (s *Store) Update(ctx context.Context, businessID, leadID string, updates map[string]any) *contractx.LeadMemory {
	mem := s.Get(ctx, businessID, leadID)
	for field, value := range updates {
		applyField(mem, field, value)
	}
	mem.InteractionCount++
	mem.LastInteraction = s.now().UTC().Format(time.RFC3339)
	if err := s.Save(ctx, mem); err != nil {
		log.Warn().Err(err).Str("lead_id", leadID).Msg("memory update not persisted")
	}
	return mem
}

// SetStage persists just the funnel stage.
func (s *Store) SetStage(ctx context.Context, businessID, leadID, stage string) error {
	mem := s.Get(ctx, businessID, leadID)
	mem.CurrentStage = stage
	return s.Save(ctx, mem)
}

// AddProductViewed records a product id, once.
func (s *Store) AddProductViewed(ctx context.Context, businessID, leadID, productID string) error {
	mem := s.Get(ctx, businessID, leadID)
	mem.ProductsViewed = appendIfAbsent(mem.ProductsViewed, productID)
	return s.Save(ctx, mem)
}

// AddPreference records a detected preference, once.
func (s *Store) AddPreference(ctx context.Context, businessID, leadID, preference string) error {
	mem := s.Get(ctx, businessID, leadID)
	mem.DetectedPreferences = appendIfAbsent(mem.DetectedPreferences, preference)
	return s.Save(ctx, mem)
}

// AddObjection records an objection, once.
func (s *Store) AddObjection(ctx context.Context, businessID, leadID, objection string) error {
	mem := s.Get(ctx, businessID, leadID)
	mem.Objections = appendIfAbsent(mem.Objections, objection)
	return s.Save(ctx, mem)
}

// UpdateCollectedData merges collected facts key by key.
func (s *Store) UpdateCollectedData(ctx context.Context, businessID, leadID string, data map[string]any) error {
	mem := s.Get(ctx, businessID, leadID)
	if mem.CollectedData == nil {
		mem.CollectedData = map[string]any{}
	}
	for k, v := range data {
		mem.CollectedData[k] = v
	}
	return s.Save(ctx, mem)
}

func applyField(mem *contractx.LeadMemory, field string, value any) {
	if listFields[field] {
		for _, item := range toStringSlice(value) {
			switch field {
			case "products_viewed":
				mem.ProductsViewed = appendIfAbsent(mem.ProductsViewed, item)
			case "followups_sent":
				mem.FollowupsSent = appendIfAbsent(mem.FollowupsSent, item)
			case "detected_preferences":
				mem.DetectedPreferences = appendIfAbsent(mem.DetectedPreferences, item)
			case "objections":
				mem.Objections = appendIfAbsent(mem.Objections, item)
			}
		}
		return
	}
	switch field {
	case "current_stage":
		if s, ok := value.(string); ok {
			mem.CurrentStage = s
		}
	case "conversation_summary":
		if s, ok := value.(string); ok {
			mem.ConversationSummary = s
		}
	case "collected_data":
		if patch, ok := value.(map[string]any); ok {
			if mem.CollectedData == nil {
				mem.CollectedData = map[string]any{}
			}
			for k, v := range patch {
				mem.CollectedData[k] = v
			}
		}
	}
}

func toStringSlice(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func appendIfAbsent(list []string, item string) []string {
	if item == "" {
		return list
	}
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
