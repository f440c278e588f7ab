package mapper

import (
	"testing"
	"time"

	"law-of-the-land-be/internal/entity"
	"law-of-the-land-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestChatMessageMetaRoundTrip(t *testing.T) {
	m := NewChatMapper()
	msg := &entity.ChatMessage{
		Id:            uuid.New(),
		Role:          "assistant",
		Content:       "Per Article 1, yes.",
		ChatSessionId: uuid.New(),
		Meta: map[string]interface{}{
			"mode":         "rag+web",
			"search_query": "lease renewal deadlines",
		},
		CreatedAt: time.Now(),
	}

	gotModel := m.ChatMessageToModel(msg)
	assert.NotEmpty(t, gotModel.Meta)

	gotEntity := m.ChatMessageToEntity(gotModel)
	assert.Equal(t, "rag+web", gotEntity.Meta["mode"])
	assert.Equal(t, "lease renewal deadlines", gotEntity.Meta["search_query"])
	assert.Equal(t, msg.Content, gotEntity.Content)
}

func TestChatMessageToEntityIgnoresMalformedMeta(t *testing.T) {
	m := NewChatMapper()
	msg := &model.ChatMessage{
		Id:        uuid.New(),
		Role:      "assistant",
		Content:   "x",
		Meta:      datatypes.JSON(`{not json`),
		CreatedAt: time.Now(),
	}

	got := m.ChatMessageToEntity(msg)

	assert.Nil(t, got.Meta)
	assert.Equal(t, "x", got.Content)
}

func TestChatSessionNilSafety(t *testing.T) {
	m := NewChatMapper()

	assert.Nil(t, m.ChatSessionToEntity(nil))
	assert.Nil(t, m.ChatSessionToModel(nil))
	assert.Nil(t, m.ChatMessageToEntity(nil))
	assert.Nil(t, m.ChatMessageToModel(nil))
}

func TestChatSessionZeroUpdatedAtMapsToNil(t *testing.T) {
	m := NewChatMapper()
	s := &model.ChatSession{
		Id:        uuid.New(),
		UserId:    uuid.New(),
		Title:     "t",
		CreatedAt: time.Now(),
	}

	got := m.ChatSessionToEntity(s)

	assert.Nil(t, got.UpdatedAt)
	assert.False(t, got.IsDeleted)
}
