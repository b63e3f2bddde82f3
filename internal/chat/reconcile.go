// Package chat maintains a single time-ordered, deduplicated view of a
// conversation fed by two asynchronous sources: paginated history fetches
// and realtime push messages. The merge functions are pure; Conversation
// wraps them with the selection and staleness bookkeeping.
package chat

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"github.com/wicaksn/koperasi-engine/internal/domain"
)

// MergePage unions an existing ordered sequence with a freshly fetched page.
// Messages are keyed by id and the first-seen entry wins, both channels
// describe the same immutable message. The result is sorted ascending by
// (created_at, id); the id tie-break keeps the order deterministic for
// messages sharing a timestamp. Merging the same page twice is a no-op.
func MergePage(existing, page []domain.ChatMessage) []domain.ChatMessage {
	seen := make(map[uuid.UUID]struct{}, len(existing)+len(page))
	merged := make([]domain.ChatMessage, 0, len(existing)+len(page))

	for _, msg := range existing {
		if _, dup := seen[msg.ID]; dup {
			continue
		}
		seen[msg.ID] = struct{}{}
		merged = append(merged, msg)
	}
	for _, msg := range page {
		if _, dup := seen[msg.ID]; dup {
			continue
		}
		seen[msg.ID] = struct{}{}
		merged = append(merged, msg)
	}

	sortMessages(merged)
	return merged
}

// AppendRealtime inserts a single pushed message. A duplicate id (reconnect
// replay) returns the existing sequence unchanged and false. The message is
// appended then re-sorted rather than assumed newest: push delivery order is
// not guaranteed relative to an in-flight history page. The returned bool is
// what callers use to fire a new-message signal.
func AppendRealtime(existing []domain.ChatMessage, incoming domain.ChatMessage) ([]domain.ChatMessage, bool) {
	for _, msg := range existing {
		if msg.ID == incoming.ID {
			return existing, false
		}
	}

	appended := make([]domain.ChatMessage, 0, len(existing)+1)
	appended = append(appended, existing...)
	appended = append(appended, incoming)
	sortMessages(appended)
	return appended, true
}

func sortMessages(msgs []domain.ChatMessage) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return bytes.Compare(msgs[i].ID[:], msgs[j].ID[:]) < 0
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
