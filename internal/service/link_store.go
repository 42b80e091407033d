package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sykell/link-health/internal/db"
)

var (
	// ErrLinkNotFound is returned when a link does not exist or belongs to another user.
	ErrLinkNotFound = errors.New("link not found")
	// ErrInvalidLink is returned when link input fails validation.
	ErrInvalidLink = errors.New("invalid link")
)

// LinkResult is the outcome of one scan written back to a link.
type LinkResult struct {
	Status             db.LinkStatus
	HTTPStatusCode     *int
	LastCheckedAt      time.Time
	RecoverySuggestion *string
}

// LinkHistory is the state the alert decision needs from before a probe.
type LinkHistory struct {
	Status          db.LinkStatus
	LastAlertSentAt *time.Time
	MerchantName    *string
	OwnerEmail      string
}

// LinkStats counts a user's links per status.
type LinkStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Broken    int64 `json:"broken"`
	Recovered int64 `json:"recovered"`
	Ignored   int64 `json:"ignored"`
}

// NewLinkInput carries the fields accepted when registering a link.
type NewLinkInput struct {
	URL            string
	MerchantName   *string
	Network        db.Network
	CampaignSource *string
}

// LinkStore persists tracked links and their health state.
type LinkStore struct {
	db *gorm.DB
}

// NewLinkStore creates a LinkStore on top of dbConn.
func NewLinkStore(dbConn *gorm.DB) *LinkStore {
	return &LinkStore{db: dbConn}
}

// ListActiveLinksForUser returns up to limit non-ignored links of userID,
// least recently checked first with never-checked links leading, so repeated
// scans rotate through sets larger than limit.
func (s *LinkStore) ListActiveLinksForUser(ctx context.Context, userID uint, limit int) ([]db.TrackedLink, error) {
	var links []db.TrackedLink
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, db.StatusIgnored).
		Order("last_checked_at IS NOT NULL").
		Order("last_checked_at").
		Order("id").
		Limit(limit).
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list links for user %d: %w", userID, err)
	}
	return links, nil
}

// UpdateLinkResult writes a scan outcome. Nil pointers clear the column.
// updated_at is left alone; it tracks user edits only.
func (s *LinkStore) UpdateLinkResult(ctx context.Context, linkID string, res LinkResult) error {
	updates := map[string]interface{}{
		"status":              res.Status,
		"last_checked_at":     res.LastCheckedAt,
		"http_status_code":    nil,
		"recovery_suggestion": nil,
	}
	if res.HTTPStatusCode != nil {
		updates["http_status_code"] = *res.HTTPStatusCode
	}
	if res.RecoverySuggestion != nil {
		updates["recovery_suggestion"] = *res.RecoverySuggestion
	}

	result := s.db.WithContext(ctx).Model(&db.TrackedLink{}).Where("id = ?", linkID).UpdateColumns(updates)
	if result.Error != nil {
		return fmt.Errorf("update link %s: %w", linkID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// GetLinkHistory returns the stored status, last alert time and owner email of a link.
func (s *LinkStore) GetLinkHistory(ctx context.Context, linkID string) (*LinkHistory, error) {
	var link db.TrackedLink
	err := s.db.WithContext(ctx).Preload("User").Where("id = ?", linkID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link history %s: %w", linkID, err)
	}
	return &LinkHistory{
		Status:          link.Status,
		LastAlertSentAt: link.LastAlertSentAt,
		MerchantName:    link.MerchantName,
		OwnerEmail:      link.User.Email,
	}, nil
}

// MarkAlertSent records that an alert for linkID was delivered at at.
func (s *LinkStore) MarkAlertSent(ctx context.Context, linkID string, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&db.TrackedLink{}).
		Where("id = ?", linkID).
		UpdateColumn("last_alert_sent_at", at)
	if result.Error != nil {
		return fmt.Errorf("mark alert sent %s: %w", linkID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// CreateLink registers a new active link for userID.
func (s *LinkStore) CreateLink(ctx context.Context, userID uint, in NewLinkInput) (*db.TrackedLink, error) {
	address := strings.TrimSpace(in.URL)
	if address == "" {
		return nil, fmt.Errorf("%w: url cannot be empty", ErrInvalidLink)
	}
	if userID == 0 {
		return nil, fmt.Errorf("%w: user ID cannot be zero", ErrInvalidLink)
	}
	network := in.Network
	if network == "" {
		network = db.NetworkOther
	}

	link := db.TrackedLink{
		ID:             uuid.NewString(),
		UserID:         userID,
		URL:            address,
		MerchantName:   in.MerchantName,
		Network:        network,
		CampaignSource: in.CampaignSource,
		Status:         db.StatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}
	return &link, nil
}

// ListLinks returns every link of userID, optionally filtered by status.
func (s *LinkStore) ListLinks(ctx context.Context, userID uint, status db.LinkStatus) ([]db.TrackedLink, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var links []db.TrackedLink
	if err := query.Order("updated_at DESC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// GetLinkForUser retrieves a link by ID for a specific user
func (s *LinkStore) GetLinkForUser(ctx context.Context, userID uint, linkID string) (*db.TrackedLink, error) {
	var link db.TrackedLink
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", linkID, userID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link %s: %w", linkID, err)
	}
	return &link, nil
}

// ReplaceLink swaps in a new URL and marks the link recovered.
func (s *LinkStore) ReplaceLink(ctx context.Context, userID uint, linkID, newURL string) (*db.TrackedLink, error) {
	address := strings.TrimSpace(newURL)
	if address == "" {
		return nil, fmt.Errorf("%w: url cannot be empty", ErrInvalidLink)
	}
	return s.updateOwned(ctx, userID, linkID, map[string]interface{}{
		"url":                 address,
		"status":              db.StatusRecovered,
		"http_status_code":    nil,
		"recovery_suggestion": nil,
	})
}

// IgnoreLink excludes a link from batch scans.
func (s *LinkStore) IgnoreLink(ctx context.Context, userID uint, linkID string) (*db.TrackedLink, error) {
	return s.updateOwned(ctx, userID, linkID, map[string]interface{}{
		"status": db.StatusIgnored,
	})
}

// RestoreLink puts an ignored link back into batch scans.
func (s *LinkStore) RestoreLink(ctx context.Context, userID uint, linkID string) (*db.TrackedLink, error) {
	link, err := s.GetLinkForUser(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}
	if link.Status != db.StatusIgnored {
		return link, nil
	}
	return s.updateOwned(ctx, userID, linkID, map[string]interface{}{
		"status": db.StatusActive,
	})
}

// DeleteLink removes a link permanently.
func (s *LinkStore) DeleteLink(ctx context.Context, userID uint, linkID string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", linkID, userID).Delete(&db.TrackedLink{})
	if result.Error != nil {
		return fmt.Errorf("delete link %s: %w", linkID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// Stats counts the links of userID per status.
func (s *LinkStore) Stats(ctx context.Context, userID uint) (*LinkStats, error) {
	var rows []struct {
		Status db.LinkStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&db.TrackedLink{}).
		Select("status, count(*) as count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("link stats: %w", err)
	}

	stats := &LinkStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case db.StatusActive:
			stats.Active = row.Count
		case db.StatusBroken:
			stats.Broken = row.Count
		case db.StatusRecovered:
			stats.Recovered = row.Count
		case db.StatusIgnored:
			stats.Ignored = row.Count
		}
	}
	return stats, nil
}

// ListUserIDsWithLinks returns the ids of users owning at least one non-ignored link.
func (s *LinkStore) ListUserIDsWithLinks(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&db.TrackedLink{}).
		Where("status <> ?", db.StatusIgnored).
		Distinct().
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list users with links: %w", err)
	}
	return ids, nil
}

func (s *LinkStore) updateOwned(ctx context.Context, userID uint, linkID string, updates map[string]interface{}) (*db.TrackedLink, error) {
	result := s.db.WithContext(ctx).Model(&db.TrackedLink{}).
		Where("id = ? AND user_id = ?", linkID, userID).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("update link %s: %w", linkID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrLinkNotFound
	}
	return s.GetLinkForUser(ctx, userID, linkID)
}
