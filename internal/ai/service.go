package ai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/scanmarket-backend/pkg/config"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage"
)

const (
	defaultCacheTTL = 5 * time.Minute

	localStorageMarker = "/storage/assets/"
	maxInlineBytes     = 20 << 20
)

// Service drafts listing fields from a product photo.
type Service interface {
	Suggest(ctx context.Context, input SuggestInput) (*Suggestion, error)
}

type ServiceParams struct {
	Config config.AIConfig
	Client Suggester
	Cache  Cache
	// Thumbnails is set when objects live on local disk; matching thumbnail
	// URLs are inlined as data URLs so the model can fetch them.
	Thumbnails storage.Gateway
	Metrics    *metrics.MarketplaceMetrics
	Logger     *logger.Logger
}

type service struct {
	cfg        config.AIConfig
	client     Suggester
	cache      Cache
	thumbnails storage.Gateway
	ttl        time.Duration
	metrics    *metrics.MarketplaceMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Cache == nil {
		return nil, fmt.Errorf("suggestion cache required")
	}
	ttl := params.Config.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &service{
		cfg:        params.Config,
		client:     params.Client,
		cache:      params.Cache,
		thumbnails: params.Thumbnails,
		ttl:        ttl,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func (s *service) Suggest(ctx context.Context, input SuggestInput) (*Suggestion, error) {
	if !s.cfg.Enabled() || s.client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "AI suggestion service is not configured").
			WithDetails(map[string]any{"service": "ai"})
	}
	input.ThumbnailURL = strings.TrimSpace(input.ThumbnailURL)
	if input.ThumbnailURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "thumbnail_url is required")
	}

	key := cacheKey(input)
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logError(ctx, "ai.cache_get_failed", err)
	}
	if ok {
		s.metrics.AICache(true)
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "thumbnail_url", input.ThumbnailURL), "ai.suggest_cache_hit")
		}
		return &cached, nil
	}
	s.metrics.AICache(false)

	raw, err := s.client.Complete(ctx, buildPrompt(input), s.resolveThumbnail(ctx, input.ThumbnailURL))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "AI service error")
	}

	suggestion := normalize(s.parse(ctx, raw))

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"has_title":           suggestion.Title != "",
			"has_description":     suggestion.Description != "",
			"category":            suggestion.Category,
			"condition":           suggestion.Condition,
			"has_price":           suggestion.PriceMin != nil,
			"has_dims_comparison": suggestion.DimsComparison != nil,
		}), "ai.suggest_result")
	}

	if err := s.cache.Set(ctx, key, suggestion, s.ttl); err != nil {
		s.logError(ctx, "ai.cache_set_failed", err)
	}
	return &suggestion, nil
}

func (s *service) parse(ctx context.Context, raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil || out == nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "raw_content", raw), "ai.suggest_parse_error")
		}
		return map[string]any{}
	}
	return out
}

// resolveThumbnail inlines locally stored thumbnails. Any failure falls back
// to the original URL.
func (s *service) resolveThumbnail(ctx context.Context, thumbnailURL string) string {
	if s.thumbnails == nil {
		return thumbnailURL
	}
	idx := strings.Index(thumbnailURL, localStorageMarker)
	if idx == -1 {
		return thumbnailURL
	}
	key := thumbnailURL[idx+len("/storage/"):]
	if q := strings.IndexByte(key, '?'); q >= 0 {
		key = key[:q]
	}
	if err := storage.ValidateKey(key); err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "key", key), "ai.suggest_local_resolve_failed")
		}
		return thumbnailURL
	}

	rc, err := s.thumbnails.Open(ctx, key)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "key", key), "ai.suggest_local_resolve_failed")
		}
		return thumbnailURL
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(rc, maxInlineBytes)); err != nil || buf.Len() == 0 {
		return thumbnailURL
	}
	data := buf.Bytes()
	return "data:" + sniffImageMIME(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// sniffImageMIME trusts the bytes over the key's extension; clients have
// been seen saving JPEG data under .png keys.
func sniffImageMIME(data []byte) string {
	switch ct := http.DetectContentType(data); ct {
	case "image/jpeg", "image/webp":
		return ct
	default:
		return "image/png"
	}
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}

func cacheKey(input SuggestInput) string {
	parts := []string{
		input.ThumbnailURL,
		floatPart(input.DimsWidth),
		floatPart(input.DimsHeight),
		floatPart(input.DimsDepth),
	}
	if input.DimsSource != nil {
		parts = append(parts, *input.DimsSource)
	} else {
		parts = append(parts, "")
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func floatPart(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).String()
}

func normalize(raw map[string]any) Suggestion {
	out := Suggestion{
		Title:          stringField(raw, "title"),
		Description:    stringField(raw, "description"),
		Category:       normalizeCategory(raw["category"]),
		Condition:      normalizeCondition(raw["condition"]),
		PriceMin:       normalizePrice(raw["price_min"]),
		PriceMax:       normalizePrice(raw["price_max"]),
		DimsComparison: optionalString(raw, "dims_comparison"),
		PriceReason:    optionalString(raw, "price_reason"),
	}
	if out.PriceMin != nil && out.PriceMax != nil && *out.PriceMin > *out.PriceMax {
		out.PriceMin, out.PriceMax = out.PriceMax, out.PriceMin
	}
	return out
}

func stringField(raw map[string]any, key string) string {
	v, _ := raw[key].(string)
	return v
}

func optionalString(raw map[string]any, key string) *string {
	v := stringField(raw, key)
	if v == "" {
		return nil
	}
	return &v
}

func normalizeCategory(v any) *enums.ProductCategory {
	s, _ := v.(string)
	c, err := enums.ParseProductCategory(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return nil
	}
	return &c
}

func normalizeCondition(v any) *enums.ProductCondition {
	s, _ := v.(string)
	c, err := enums.ParseProductCondition(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return nil
	}
	return &c
}

// normalizePrice accepts numbers or numeric strings ("12,000" included),
// truncates to whole won and drops non-positive values.
func normalizePrice(v any) *int64 {
	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.ReplaceAll(strings.TrimSpace(t), ",", "")
	default:
		return nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil
	}
	n := d.IntPart()
	if n <= 0 {
		return nil
	}
	return &n
}
