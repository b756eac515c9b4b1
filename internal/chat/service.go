package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/internal/assets"
	"github.com/angelmondragon/scanmarket-backend/internal/products"
	"github.com/angelmondragon/scanmarket-backend/internal/users"
	"github.com/angelmondragon/scanmarket-backend/pkg/db"
	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
	"github.com/angelmondragon/scanmarket-backend/pkg/pagination"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage"
)

const (
	// PhotoPlaceholder stands in for the body of a photo sent without text.
	PhotoPlaceholder = "[Photo]"

	maxSubjectLen = 200
	maxBodyLen    = 5000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns rooms, messages and read cursors.
type Service interface {
	CreateRoom(ctx context.Context, buyerID, productID uuid.UUID, subject string) (*RoomDTO, error)
	ListRooms(ctx context.Context, userID uuid.UUID) ([]RoomDTO, error)
	Participant(ctx context.Context, userID, roomID uuid.UUID) (*models.ChatRoom, error)
	GetMessages(ctx context.Context, userID, roomID uuid.UUID, before *time.Time, limit int) ([]MessageDTO, error)
	SendMessage(ctx context.Context, userID, roomID uuid.UUID, body string, imageURL *string) (*MessageDTO, error)
	MarkRead(ctx context.Context, userID, roomID uuid.UUID) (*RoomDTO, error)
	TotalUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	UploadImage(ctx context.Context, userID uuid.UUID, contentType string, r io.Reader) (*ImageUploadResponse, error)
}

type ServiceParams struct {
	Tx            txRunner
	Repo          *Repository
	Products      *products.Repository
	Assets        *assets.Repository
	Users         *users.Repository
	Storage       storage.Gateway
	Bus           Bus
	MaxImageBytes int64
	Metrics       *metrics.MarketplaceMetrics
	Logger        *logger.Logger
}

type service struct {
	tx            txRunner
	repo          *Repository
	products      *products.Repository
	assets        *assets.Repository
	users         *users.Repository
	storage       storage.Gateway
	bus           Bus
	maxImageBytes int64
	metrics       *metrics.MarketplaceMetrics
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Repo == nil:
		return nil, fmt.Errorf("chat repository required")
	case p.Products == nil:
		return nil, fmt.Errorf("product repository required")
	case p.Assets == nil:
		return nil, fmt.Errorf("asset repository required")
	case p.Users == nil:
		return nil, fmt.Errorf("user repository required")
	case p.Storage == nil:
		return nil, fmt.Errorf("storage gateway required")
	case p.Bus == nil:
		return nil, fmt.Errorf("chat bus required")
	case p.MaxImageBytes <= 0:
		return nil, fmt.Errorf("max image size must be positive")
	}
	return &service{
		tx:            p.Tx,
		repo:          p.Repo,
		products:      p.Products,
		assets:        p.Assets,
		users:         p.Users,
		storage:       p.Storage,
		bus:           p.Bus,
		maxImageBytes: p.MaxImageBytes,
		metrics:       p.Metrics,
		logg:          p.Logger,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateRoom(ctx context.Context, buyerID, productID uuid.UUID, subject string) (*RoomDTO, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product.SellerID == buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot start a chat about your own product")
	}

	if existing, err := s.repo.FindByProductBuyer(ctx, productID, buyerID); err == nil {
		return s.buildOne(ctx, existing, buyerID)
	} else if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load chat room")
	}

	room := &models.ChatRoom{
		ProductID: product.ID,
		BuyerID:   buyerID,
		SellerID:  product.SellerID,
		Subject:   roomSubject(subject, product.Title),
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		if !db.IsUniqueViolation(err, "uq_chat_rooms_product_buyer") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create chat room")
		}
		// lost a race with a concurrent create for the same buyer
		existing, ferr := s.repo.FindByProductBuyer(ctx, productID, buyerID)
		if ferr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, ferr, "load chat room")
		}
		room = existing
	}
	return s.buildOne(ctx, room, buyerID)
}

func (s *service) ListRooms(ctx context.Context, userID uuid.UUID) ([]RoomDTO, error) {
	rooms, err := s.repo.ListRooms(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list chat rooms")
	}
	return s.build(ctx, rooms, userID)
}

// Participant loads the room and checks that userID is its buyer or seller.
func (s *service) Participant(ctx context.Context, userID, roomID uuid.UUID) (*models.ChatRoom, error) {
	room, err := s.repo.FindRoom(ctx, roomID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "chat room not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load chat room")
	}
	if !room.IsParticipant(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a participant")
	}
	return room, nil
}

func (s *service) GetMessages(ctx context.Context, userID, roomID uuid.UUID, before *time.Time, limit int) ([]MessageDTO, error) {
	if _, err := s.Participant(ctx, userID, roomID); err != nil {
		return nil, err
	}
	limit, err := pagination.Limit(limit, pagination.DefaultMessageLimit)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Messages(ctx, roomID, before, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load messages")
	}
	out := make([]MessageDTO, 0, len(rows))
	for i := range rows {
		out = append(out, messageDTO(&rows[i]))
	}
	return out, nil
}

// SendMessage persists the message, refreshes the room snapshot and the
// sender's read cursor in one transaction, then publishes it on the bus.
func (s *service) SendMessage(ctx context.Context, userID, roomID uuid.UUID, body string, imageURL *string) (*MessageDTO, error) {
	room, err := s.Participant(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}

	msg, err := composeMessage(body, imageURL)
	if err != nil {
		return nil, err
	}
	msg.RoomID = room.ID
	msg.SenderID = userID
	msg.CreatedAt = s.now()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AddMessage(ctx, msg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store message")
		}
		if err := repo.MarkRead(ctx, room, userID, msg.CreatedAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advance read cursor")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ChatMessage(msg.MessageType.String())

	dto := messageDTO(msg)
	if err := s.bus.Publish(ctx, Event{RoomID: room.ID.String(), Frame: FrameOf(dto)}); err != nil && s.logg != nil {
		logCtx := s.logg.WithRoomID(ctx, room.ID.String())
		s.logg.Error(logCtx, "chat.publish_failed", err)
	}
	return &dto, nil
}

func (s *service) MarkRead(ctx context.Context, userID, roomID uuid.UUID) (*RoomDTO, error) {
	room, err := s.Participant(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkRead(ctx, room, userID, s.now()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark room read")
	}
	room, err = s.repo.FindRoom(ctx, roomID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload chat room")
	}
	return s.buildOne(ctx, room, userID)
}

func (s *service) TotalUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	counts, err := s.repo.UnreadByRoom(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count unread messages")
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (s *service) UploadImage(ctx context.Context, userID uuid.UUID, contentType string, r io.Reader) (*ImageUploadResponse, error) {
	declared := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := imageExtensions[declared]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported file type %q, allowed: JPEG, PNG, WebP", contentType))
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxImageBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if int64(len(data)) > s.maxImageBytes {
		return nil, pkgerrors.New(pkgerrors.CodeTooLarge, "file too large").
			WithDetails(map[string]any{"max_bytes": s.maxImageBytes})
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "empty file")
	}
	if detected := DetectImageType(data); detected != declared {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file content does not match an allowed image format")
	}

	key := storage.ChatImageKey(ext)
	if err := s.storage.Save(ctx, key, bytes.NewReader(data), int64(len(data)), declared); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store chat image")
	}
	url, err := s.storage.DownloadURL(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign chat image url")
	}
	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, userID.String())
		s.logg.Info(s.logg.WithField(logCtx, "key", key), "chat.image_uploaded")
	}
	return &ImageUploadResponse{ImageURL: url}, nil
}

func (s *service) buildOne(ctx context.Context, room *models.ChatRoom, viewerID uuid.UUID) (*RoomDTO, error) {
	rooms, err := s.build(ctx, []models.ChatRoom{*room}, viewerID)
	if err != nil {
		return nil, err
	}
	return &rooms[0], nil
}

// build denormalizes rooms with one query per related table.
func (s *service) build(ctx context.Context, rooms []models.ChatRoom, viewerID uuid.UUID) ([]RoomDTO, error) {
	out := make([]RoomDTO, 0, len(rooms))
	if len(rooms) == 0 {
		return out, nil
	}

	userIDs := make([]uuid.UUID, 0, 2*len(rooms))
	productIDs := make([]uuid.UUID, 0, len(rooms))
	for _, r := range rooms {
		userIDs = append(userIDs, r.BuyerID, r.SellerID)
		productIDs = append(productIDs, r.ProductID)
	}

	people, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load participants")
	}
	// rooms outlive soft-deleted listings
	listed, err := s.products.FindByIDsUnscoped(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(listed))
	assetIDs := make([]uuid.UUID, 0, len(listed))
	for _, p := range listed {
		byID[p.ID] = p
		if p.AssetID != nil {
			assetIDs = append(assetIDs, *p.AssetID)
		}
	}
	thumbs, err := s.assets.ThumbnailKeys(ctx, assetIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load thumbnails")
	}
	unread, err := s.repo.UnreadByRoom(ctx, viewerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count unread messages")
	}

	for _, r := range rooms {
		dto := RoomDTO{
			ID:              r.ID,
			ProductID:       r.ProductID,
			BuyerID:         r.BuyerID,
			SellerID:        r.SellerID,
			Subject:         r.Subject,
			CreatedAt:       r.CreatedAt,
			LastMessageAt:   r.LastMessageAt,
			LastMessageBody: r.LastMessageBody,
			UnreadCount:     unread[r.ID],
			BuyerName:       people[r.BuyerID].Name,
			SellerName:      people[r.SellerID].Name,
		}
		if p, ok := byID[r.ProductID]; ok {
			dto.ProductTitle = p.Title
			if p.AssetID != nil {
				if key, ok := thumbs[*p.AssetID]; ok {
					url, err := s.storage.DownloadURL(ctx, key)
					if err != nil {
						return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign thumbnail url")
					}
					dto.ProductThumbnailURL = &url
				}
			}
		}
		out = append(out, dto)
	}
	return out, nil
}

// composeMessage applies the body and attachment rules shared by REST and
// WebSocket sends.
func composeMessage(body string, imageURL *string) (*models.ChatMessage, error) {
	if imageURL != nil {
		trimmed := strings.TrimSpace(*imageURL)
		if trimmed == "" {
			imageURL = nil
		} else if !IsHTTPURL(trimmed) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "image_url must be an http or https URL")
		} else {
			imageURL = &trimmed
		}
	}

	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) > maxBodyLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("body must be at most %d characters", maxBodyLen))
	}

	msg := &models.ChatMessage{Body: body, MessageType: enums.MessageTypeText}
	if imageURL != nil {
		msg.MessageType = enums.MessageTypeImage
		msg.ImageURL = imageURL
		if body == "" {
			msg.Body = PhotoPlaceholder
		}
	} else if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body or image_url is required")
	}
	return msg, nil
}

// IsHTTPURL reports whether raw is an absolute http or https URL.
func IsHTTPURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

func roomSubject(subject, fallback string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = fallback
	}
	if utf8.RuneCountInString(subject) > maxSubjectLen {
		subject = string([]rune(subject)[:maxSubjectLen])
	}
	return subject
}
