package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
)

// Repository persists rooms, messages and read cursors.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *Repository) FindRoom(ctx context.Context, id uuid.UUID) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *Repository) FindByProductBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND buyer_id = ?", productID, buyerID).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms returns every room the user takes part in, most recently active
// first. Rooms without messages sort after active ones.
func (r *Repository) ListRooms(ctx context.Context, userID uuid.UUID) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("CASE WHEN last_message_at IS NULL THEN 1 ELSE 0 END").
		Order("last_message_at DESC").
		Order("created_at DESC").
		Find(&rooms).Error
	return rooms, err
}

// Messages returns up to limit messages older than before (when set), newest
// first.
func (r *Repository) Messages(ctx context.Context, roomID uuid.UUID, before *time.Time, limit int) ([]models.ChatMessage, error) {
	q := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if before != nil {
		q = q.Where("created_at < ?", before.UTC())
	}
	var rows []models.ChatMessage
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// AddMessage stores msg and refreshes the room's last-message snapshot.
func (r *Repository) AddMessage(ctx context.Context, msg *models.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("id = ?", msg.RoomID).
		Updates(map[string]any{
			"last_message_at":   msg.CreatedAt,
			"last_message_body": msg.Body,
		}).Error
}

// MarkRead moves the user's cursor to at unless it already points later.
func (r *Repository) MarkRead(ctx context.Context, room *models.ChatRoom, userID uuid.UUID, at time.Time) error {
	column := cursorColumn(room, userID)
	if column == "" {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("id = ?", room.ID).
		Where(column+" IS NULL OR "+column+" < ?", at).
		Update(column, at).Error
}

// CountUnread counts messages from the other participant newer than the
// user's cursor.
func (r *Repository) CountUnread(ctx context.Context, room *models.ChatRoom, userID uuid.UUID) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("room_id = ? AND sender_id <> ?", room.ID, userID)
	if cursor := room.ReadCursor(userID); cursor != nil {
		q = q.Where("created_at > ?", cursor.UTC())
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

type unreadRow struct {
	RoomID uuid.UUID
	N      int64
}

// UnreadByRoom computes unread counts for every room of the user in one query.
func (r *Repository) UnreadByRoom(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []unreadRow
	err := r.db.WithContext(ctx).
		Table("chat_messages AS m").
		Select("m.room_id AS room_id, COUNT(*) AS n").
		Joins("JOIN chat_rooms AS r ON r.id = m.room_id").
		Where("m.sender_id <> ?", userID).
		Where(
			r.db.Where("r.buyer_id = ? AND (r.buyer_last_read_at IS NULL OR m.created_at > r.buyer_last_read_at)", userID).
				Or("r.seller_id = ? AND (r.seller_last_read_at IS NULL OR m.created_at > r.seller_last_read_at)", userID),
		).
		Group("m.room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		out[row.RoomID] = row.N
	}
	return out, nil
}

func cursorColumn(room *models.ChatRoom, userID uuid.UUID) string {
	switch userID {
	case room.BuyerID:
		return "buyer_last_read_at"
	case room.SellerID:
		return "seller_last_read_at"
	default:
		return ""
	}
}
