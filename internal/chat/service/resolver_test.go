package service

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revline/internal/chat/service/mocks"
	"revline/internal/common"
)

func TestNewParticipantSet(t *testing.T) {
	tests := []struct {
		name      string
		requester string
		ids       []string
		want      []string
	}{
		{name: "adds requester", requester: "u1", ids: []string{"u2"}, want: []string{"u1", "u2"}},
		{name: "dedupes and sorts", requester: "u3", ids: []string{"u2", "u3", "u2", "u1"}, want: []string{"u1", "u2", "u3"}},
		{name: "drops empty", requester: "u1", ids: []string{"", "  ", "u2 "}, want: []string{"u1", "u2"}},
		{name: "self conversation", requester: "u1", want: []string{"u1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewParticipantSet(tt.requester, tt.ids...)
			assert.Equal(t, tt.want, set.IDs())
			assert.Equal(t, len(tt.want), set.Len())
		})
	}
}

func TestParticipantSet_EqualAndKey(t *testing.T) {
	a := NewParticipantSet("u1", "u2", "u3")
	b := NewParticipantSet("u3", "u1", "u2", "u2")
	c := NewParticipantSet("u1", "u2")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Len(t, a.Key(), 64)

	assert.True(t, a.Contains("u2"))
	assert.False(t, c.Contains("u3"))

	assert.NotEqual(t, c.Key(), NewParticipantSet("u1u2").Key())
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(*mocks.MockConversationRepository)
		set     ParticipantSet
		want    string
		wantErr error
	}{
		{
			name: "first match in creation order",
			setup: func(m *mocks.MockConversationRepository) {
				m.EXPECT().ActiveConversationIDs(ctx, "u1").Return([]string{"c1", "c2", "c3"}, nil)
				m.EXPECT().ActiveParticipants(ctx, []string{"c1", "c2", "c3"}).Return(map[string][]string{
					"c1": {"u1", "u2", "u3"},
					"c2": {"u2", "u1"},
					"c3": {"u1", "u2"},
				}, nil)
			},
			set:  NewParticipantSet("u1", "u2"),
			want: "c2",
		},
		{
			name: "archived member changes the live set",
			setup: func(m *mocks.MockConversationRepository) {
				m.EXPECT().ActiveConversationIDs(ctx, "u1").Return([]string{"c1"}, nil)
				m.EXPECT().ActiveParticipants(ctx, []string{"c1"}).Return(map[string][]string{
					"c1": {"u1"},
				}, nil)
			},
			set:     NewParticipantSet("u1", "u2"),
			wantErr: ErrNoMatch,
		},
		{
			name: "no memberships skips the batch query",
			setup: func(m *mocks.MockConversationRepository) {
				m.EXPECT().ActiveConversationIDs(ctx, "u1").Return(nil, nil)
			},
			set:     NewParticipantSet("u1", "u2"),
			wantErr: ErrNoMatch,
		},
		{
			name: "backend failure",
			setup: func(m *mocks.MockConversationRepository) {
				m.EXPECT().ActiveConversationIDs(ctx, "u1").
					Return(nil, common.Backend("failed to list memberships", assert.AnError))
			},
			set:     NewParticipantSet("u1", "u2"),
			wantErr: common.ErrBackendOperationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := mocks.NewMockConversationRepository(ctrl)
			tt.setup(repo)

			got, err := NewResolver(repo).Resolve(ctx, "u1", tt.set)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
