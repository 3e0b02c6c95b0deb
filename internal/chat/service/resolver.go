package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"

	"revline/internal/chat/repository"
)

// ErrNoMatch means no existing conversation has exactly the proposed participants.
var ErrNoMatch = errors.New("no conversation with this participant set")

// ParticipantSet is a deduplicated, sorted set of user ids.
type ParticipantSet struct {
	ids []string
}

// NewParticipantSet always includes requester. Empty and repeated ids are dropped.
func NewParticipantSet(requester string, ids ...string) ParticipantSet {
	seen := make(map[string]struct{}, len(ids)+1)
	out := make([]string, 0, len(ids)+1)
	for _, id := range append([]string{requester}, ids...) {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return ParticipantSet{ids: out}
}

// IDs returns a copy of the members in sorted order.
func (s ParticipantSet) IDs() []string {
	return append([]string(nil), s.ids...)
}

func (s ParticipantSet) Len() int {
	return len(s.ids)
}

func (s ParticipantSet) Contains(id string) bool {
	i := sort.SearchStrings(s.ids, id)
	return i < len(s.ids) && s.ids[i] == id
}

func (s ParticipantSet) Equal(other ParticipantSet) bool {
	if len(s.ids) != len(other.ids) {
		return false
	}
	for i := range s.ids {
		if s.ids[i] != other.ids[i] {
			return false
		}
	}
	return true
}

// Key is the canonical identity of the set: the hex SHA-256 of the sorted ids.
func (s ParticipantSet) Key() string {
	sum := sha256.Sum256([]byte(strings.Join(s.ids, "\x00")))
	return hex.EncodeToString(sum[:])
}

type Resolver struct {
	conversations repository.ConversationRepository
}

func NewResolver(conversations repository.ConversationRepository) *Resolver {
	return &Resolver{conversations: conversations}
}

// Resolve returns the oldest conversation of requester whose non-archived participants are exactly set.
func (r *Resolver) Resolve(ctx context.Context, requester string, set ParticipantSet) (string, error) {
	candidates, err := r.conversations.ActiveConversationIDs(ctx, requester)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", ErrNoMatch
	}

	members, err := r.conversations.ActiveParticipants(ctx, candidates)
	if err != nil {
		return "", err
	}

	for _, id := range candidates {
		// the requester's membership is part of every candidate, so NewParticipantSet adds nothing new
		if NewParticipantSet(requester, members[id]...).Equal(set) {
			return id, nil
		}
	}
	return "", ErrNoMatch
}
