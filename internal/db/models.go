package db

import (
	"fmt"
	"strings"
	"time"
)

// LinkStatus is the persisted health state of a tracked link.
type LinkStatus string

const (
	StatusActive    LinkStatus = "active"
	StatusBroken    LinkStatus = "broken"
	StatusRecovered LinkStatus = "recovered"
	StatusIgnored   LinkStatus = "ignored"
)

// Valid reports whether s is one of the known statuses.
func (s LinkStatus) Valid() bool {
	switch s {
	case StatusActive, StatusBroken, StatusRecovered, StatusIgnored:
		return true
	}
	return false
}

// Network identifies the affiliate network a link belongs to.
type Network string

const (
	NetworkShareASale Network = "shareasale"
	NetworkAwin       Network = "awin"
	NetworkOther      Network = "other"
)

// ParseNetwork maps free-form input ("ShareASale", "awin", ...) to a Network.
func ParseNetwork(s string) (Network, error) {
	switch Network(strings.ToLower(strings.TrimSpace(s))) {
	case NetworkShareASale:
		return NetworkShareASale, nil
	case NetworkAwin:
		return NetworkAwin, nil
	case NetworkOther, "":
		return NetworkOther, nil
	}
	return "", fmt.Errorf("unknown network %q", s)
}

// DisplayName returns the network name as shown to users.
func (n Network) DisplayName() string {
	switch n {
	case NetworkShareASale:
		return "ShareASale"
	case NetworkAwin:
		return "Awin"
	default:
		return "Other"
	}
}

// TrackedLink is one user-monitored affiliate URL.
type TrackedLink struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	UserID             uint       `gorm:"index;not null" json:"user_id"`
	URL                string     `gorm:"type:text;not null" json:"url"`
	MerchantName       *string    `gorm:"size:255" json:"merchant_name"`
	Network            Network    `gorm:"size:20;not null;default:'other'" json:"network"`
	CampaignSource     *string    `gorm:"size:255" json:"campaign_source"`
	Status             LinkStatus `gorm:"size:20;index;not null;default:'active'" json:"status"`
	LastCheckedAt      *time.Time `json:"last_checked_at"`
	LastAlertSentAt    *time.Time `json:"last_alert_sent_at"`
	HTTPStatusCode     *int       `json:"http_status_code"`
	RecoverySuggestion *string    `gorm:"type:text" json:"recovery_suggestion"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `gorm:"index" json:"updated_at"`
	User               User       `gorm:"foreignKey:UserID" json:"-"`
}

// User represents an authenticated user.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null;size:100" json:"username"`
	Email     string    `gorm:"size:255" json:"email"`
	Password  string    `gorm:"not null;size:255" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
