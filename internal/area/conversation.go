package area

import (
	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/player"
)

// ConversationArea は話題を持つ汎用エリアです
// 最後の在室者が出ると話題はクリアされます
type ConversationArea struct {
	occupancy
	topic string
}

func NewConversationArea(id string, box BoundingBox, em Emitter) *ConversationArea {
	return &ConversationArea{occupancy: newOccupancy(id, box, em)}
}

func (c *ConversationArea) Kind() Kind { return KindConversation }

func (c *ConversationArea) IsActive() bool { return c.topic != "" && len(c.occupants) > 0 }

func (c *ConversationArea) Topic() string { return c.topic }

// SetTopic は話題を設定します
func (c *ConversationArea) SetTopic(topic string) {
	c.topic = topic
	c.emit(models.EventInteractableUpdate, nil, c.Model())
}

func (c *ConversationArea) Add(p *player.Player) {
	c.enter(p)
	c.emit(models.EventInteractableUpdate, nil, c.Model())
}

func (c *ConversationArea) Remove(p *player.Player) {
	c.leave(p)
	if len(c.occupants) == 0 {
		c.topic = ""
	}
	c.emit(models.EventInteractableUpdate, nil, c.Model())
}

func (c *ConversationArea) Model() any {
	return models.ConversationArea{
		ID:        c.id,
		Type:      string(KindConversation),
		Occupants: c.Occupants(),
		Topic:     c.topic,
	}
}
