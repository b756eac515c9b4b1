package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// ChatRoom is a conversation between one buyer and the seller of a product.
type ChatRoom struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_chat_rooms_product_buyer,priority:1"`
	BuyerID          uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:uq_chat_rooms_product_buyer,priority:2;index:idx_chat_rooms_buyer_id"`
	SellerID         uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index:idx_chat_rooms_seller_id"`
	Subject          string     `gorm:"column:subject;type:varchar(200);not null"`
	LastMessageAt    *time.Time `gorm:"column:last_message_at"`
	LastMessageBody  *string    `gorm:"column:last_message_body"`
	BuyerLastReadAt  *time.Time `gorm:"column:buyer_last_read_at"`
	SellerLastReadAt *time.Time `gorm:"column:seller_last_read_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *ChatRoom) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// IsParticipant reports whether userID is the buyer or the seller of the room.
func (r *ChatRoom) IsParticipant(userID uuid.UUID) bool {
	return userID == r.BuyerID || userID == r.SellerID
}

// ReadCursor returns the last-read timestamp for userID, or nil when the user
// has never read the room or is not a participant.
func (r *ChatRoom) ReadCursor(userID uuid.UUID) *time.Time {
	switch userID {
	case r.BuyerID:
		return r.BuyerLastReadAt
	case r.SellerID:
		return r.SellerLastReadAt
	default:
		return nil
	}
}

// ChatMessage is a single persisted message in a room.
type ChatMessage struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	RoomID      uuid.UUID         `gorm:"column:room_id;type:uuid;not null;index:idx_chat_messages_room_created,priority:1"`
	SenderID    uuid.UUID         `gorm:"column:sender_id;type:uuid;not null"`
	Body        string            `gorm:"column:body;not null"`
	MessageType enums.MessageType `gorm:"column:message_type;type:varchar(8);not null;default:TEXT"`
	ImageURL    *string           `gorm:"column:image_url"`
	CreatedAt   time.Time         `gorm:"column:created_at;not null;index:idx_chat_messages_room_created,priority:2"`
}

func (m *ChatMessage) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}
