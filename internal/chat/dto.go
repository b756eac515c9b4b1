package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// FrameTypeMessage tags outbound message frames.
const FrameTypeMessage = "message"

type CreateRoomRequest struct {
	Subject string `json:"subject" validate:"max=200"`
}

type SendMessageRequest struct {
	Body     string  `json:"body" validate:"max=5000"`
	ImageURL *string `json:"image_url" validate:"omitempty,url"`
}

type RoomDTO struct {
	ID                  uuid.UUID  `json:"id"`
	ProductID           uuid.UUID  `json:"product_id"`
	BuyerID             uuid.UUID  `json:"buyer_id"`
	SellerID            uuid.UUID  `json:"seller_id"`
	Subject             string     `json:"subject"`
	CreatedAt           time.Time  `json:"created_at"`
	LastMessageAt       *time.Time `json:"last_message_at"`
	LastMessageBody     *string    `json:"last_message_body"`
	UnreadCount         int64      `json:"unread_count"`
	BuyerName           string     `json:"buyer_name"`
	SellerName          string     `json:"seller_name"`
	ProductTitle        string     `json:"product_title"`
	ProductThumbnailURL *string    `json:"product_thumbnail_url"`
}

type RoomListResponse struct {
	Rooms []RoomDTO `json:"rooms"`
}

type MessageDTO struct {
	ID          uuid.UUID         `json:"id"`
	RoomID      uuid.UUID         `json:"room_id"`
	SenderID    uuid.UUID         `json:"sender_id"`
	Body        string            `json:"body"`
	MessageType enums.MessageType `json:"message_type"`
	ImageURL    *string           `json:"image_url"`
	CreatedAt   time.Time         `json:"created_at"`
}

type MessageListResponse struct {
	Messages []MessageDTO `json:"messages"`
}

type ImageUploadResponse struct {
	ImageURL string `json:"image_url"`
}

// Frame is the payload pushed to WebSocket clients.
type Frame struct {
	Type        string            `json:"type"`
	ID          uuid.UUID         `json:"id"`
	RoomID      uuid.UUID         `json:"room_id"`
	SenderID    uuid.UUID         `json:"sender_id"`
	Body        string            `json:"body"`
	MessageType enums.MessageType `json:"message_type"`
	ImageURL    *string           `json:"image_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// InboundFrame is what a WebSocket client sends.
type InboundFrame struct {
	Body     *string `json:"body"`
	ImageURL any     `json:"image_url"`
}

func messageDTO(m *models.ChatMessage) MessageDTO {
	return MessageDTO{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.SenderID,
		Body:        m.Body,
		MessageType: m.MessageType,
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt,
	}
}

// FrameOf renders a message as an outbound frame.
func FrameOf(m MessageDTO) Frame {
	return Frame{
		Type:        FrameTypeMessage,
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.SenderID,
		Body:        m.Body,
		MessageType: m.MessageType,
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt,
	}
}
