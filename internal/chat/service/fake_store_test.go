package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"revline/internal/cache"
	"revline/internal/common"
	"revline/internal/dbmysql"
	"revline/internal/notif"
	"revline/internal/realtime"
)

// fakeStore is an in-memory relational store shared by the conversation and message fakes.
type fakeStore struct {
	mu       sync.Mutex
	convs    map[string]dbmysql.Conversation
	order    []string
	members  map[string][]dbmysql.Participant
	messages []dbmysql.Message
	profiles map[string]dbmysql.UserProfile
	creates  int
	seq      time.Duration

	// afterUnreadRead runs once UnreadExists has read the store, outside the lock.
	afterUnreadRead func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		convs:    make(map[string]dbmysql.Conversation),
		members:  make(map[string][]dbmysql.Participant),
		profiles: make(map[string]dbmysql.UserProfile),
	}
}

func (f *fakeStore) addProfile(id, name string) {
	f.profiles[id] = dbmysql.UserProfile{ID: id, Handle: id, DisplayName: name}
}

func (f *fakeStore) conversationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.convs)
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeConversations struct{ *fakeStore }

func (f fakeConversations) ActiveConversationIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, id := range f.order {
		for _, p := range f.members[id] {
			if p.UserID == userID && !p.Archived {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (f fakeConversations) ActiveParticipants(_ context.Context, ids []string) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]string)
	for _, id := range ids {
		for _, p := range f.members[id] {
			if !p.Archived {
				out[id] = append(out[id], p.UserID)
			}
		}
	}
	return out, nil
}

func (f fakeConversations) Create(_ context.Context, conv *dbmysql.Conversation, participantIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if _, ok := f.convs[conv.ID]; ok {
		return common.Backend("failed to create conversation", errors.New("duplicate key"))
	}
	members := make([]dbmysql.Participant, 0, len(participantIDs))
	for _, id := range participantIDs {
		members = append(members, dbmysql.Participant{ConversationID: conv.ID, UserID: id, JoinedAt: conv.CreatedAt})
	}
	f.convs[conv.ID] = *conv
	f.order = append(f.order, conv.ID)
	f.members[conv.ID] = members
	conv.Participants = members
	return nil
}

func (f fakeConversations) ByID(_ context.Context, id string) (*dbmysql.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return nil, common.NotFound("conversation", id)
	}
	return &conv, nil
}

func (f fakeConversations) Membership(_ context.Context, conversationID, userID string) (*dbmysql.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.members[conversationID] {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, common.ErrNotParticipant
}

func (f fakeConversations) Participants(_ context.Context, conversationID string) ([]dbmysql.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dbmysql.Participant(nil), f.members[conversationID]...), nil
}

func (f fakeConversations) Archive(_ context.Context, conversationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.members[conversationID] {
		if p.UserID == userID {
			f.members[conversationID][i].Archived = true
			return nil
		}
	}
	return common.ErrNotParticipant
}

func (f fakeConversations) ListForUser(_ context.Context, userID string) ([]dbmysql.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []dbmysql.Conversation
	for i := len(f.order) - 1; i >= 0; i-- {
		id := f.order[i]
		for _, p := range f.members[id] {
			if p.UserID == userID && !p.Archived {
				conv := f.convs[id]
				conv.Participants = append([]dbmysql.Participant(nil), f.members[id]...)
				out = append(out, conv)
			}
		}
	}
	return out, nil
}

type fakeMessages struct{ *fakeStore }

func (f fakeMessages) Insert(_ context.Context, msg *dbmysql.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f fakeMessages) ByID(_ context.Context, id string) (*dbmysql.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, common.NotFound("message", id)
}

func (f fakeMessages) ListByConversation(_ context.Context, conversationID string) ([]dbmysql.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []dbmysql.Message
	for _, m := range f.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if p, ok := f.profiles[m.SenderID]; ok {
			m.Sender = &p
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f fakeMessages) MarkConversationRead(_ context.Context, conversationID, exceptSender string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i, m := range f.messages {
		if m.ConversationID == conversationID && !m.IsRead && (exceptSender == "" || m.SenderID != exceptSender) {
			f.messages[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (f fakeMessages) MarkRead(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.messages {
		if m.ID == id && !m.IsRead {
			f.messages[i].IsRead = true
			return 1, nil
		}
	}
	return 0, nil
}

func (f fakeMessages) activeMember(conversationID, userID string) bool {
	for _, p := range f.members[conversationID] {
		if p.UserID == userID && !p.Archived {
			return true
		}
	}
	return false
}

func (f fakeMessages) UnreadExists(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	exists := false
	for _, m := range f.messages {
		if !m.IsRead && m.SenderID != userID && f.activeMember(m.ConversationID, userID) {
			exists = true
			break
		}
	}
	hook := f.afterUnreadRead
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return exists, nil
}

func (f fakeMessages) UnreadCounts(_ context.Context, userID string, ids []string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		out[id] = 0
	}
	for _, m := range f.messages {
		if _, ok := out[m.ConversationID]; ok && !m.IsRead && m.SenderID != userID {
			out[m.ConversationID]++
		}
	}
	return out, nil
}

type fakeProfiles struct{ *fakeStore }

func (f fakeProfiles) ByID(_ context.Context, id string) (*dbmysql.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, common.NotFound("user", id)
	}
	return &p, nil
}

func (f fakeProfiles) ByIDs(_ context.Context, ids []string) (map[string]dbmysql.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]dbmysql.UserProfile)
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	err     error
	objects map[string][]byte
}

func (f *fakeStorage) Upload(_ context.Context, path, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[path] = data
	return path, nil
}

func (f *fakeStorage) PublicURL(path string) string {
	return "http://media.test/storage/v1/object/public/chat/" + path
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notif.ChatPayload
	to    [][]string
}

func (r *recordingNotifier) SendChatNotification(_ context.Context, recipients []string, payload notif.ChatPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, payload)
	r.to = append(r.to, recipients)
}

type harness struct {
	store    *fakeStore
	storage  *fakeStorage
	feed     *realtime.MemoryFeed
	mem      *cache.MemoryCache
	notifier *recordingNotifier
	svc      ChatService
	clock    time.Time
}

func newHarness(opts Options) *harness {
	store := newFakeStore()
	for _, id := range []string{"u1", "u2", "u3"} {
		store.addProfile(id, "user "+id)
	}

	h := &harness{
		store:    store,
		storage:  &fakeStorage{},
		feed:     realtime.NewMemoryFeed(),
		mem:      cache.NewMemoryCache(),
		notifier: &recordingNotifier{},
		clock:    time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}

	svc := NewChatService(Deps{
		Conversations: fakeConversations{store},
		Messages:      fakeMessages{store},
		Profiles:      fakeProfiles{store},
		Storage:       h.storage,
		Publisher:     h.feed,
		Cache:         cache.NewCoordinator(h.mem, time.Minute),
		Notifier:      h.notifier,
	}, opts).(*chatService)

	// strictly increasing timestamps keep creation order observable
	svc.now = func() time.Time {
		store.mu.Lock()
		defer store.mu.Unlock()
		store.seq += time.Millisecond
		return h.clock.Add(store.seq)
	}
	h.svc = svc
	return h
}

func textAttachment(name, body string) *Attachment {
	return &Attachment{Filename: name, ContentType: "image/png", Body: bytes.NewBufferString(body)}
}
