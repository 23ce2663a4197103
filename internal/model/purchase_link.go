package model

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseLink 可分享的購買連結，綁定在一個 hold 上
type PurchaseLink struct {
	ID                int                    `json:"id" db:"id"`
	UUID              uuid.UUID              `json:"uuid" db:"uuid"`
	TicketHoldID      int                    `json:"ticket_hold_id" db:"ticket_hold_id"`
	Code              string                 `json:"code" db:"code"`
	Name              *string                `json:"name,omitempty" db:"name"`
	AssignedUserID    *int                   `json:"assigned_user_id,omitempty" db:"assigned_user_id"`
	QuantityMode      QuantityMode           `json:"quantity_mode" db:"quantity_mode"`
	QuantityLimit     *int                   `json:"quantity_limit,omitempty" db:"quantity_limit"`
	QuantityPurchased int                    `json:"quantity_purchased" db:"quantity_purchased"`
	Status            LinkStatus             `json:"status" db:"status"`
	ExpiresAt         *time.Time             `json:"expires_at,omitempty" db:"expires_at"`
	RevokedAt         *time.Time             `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokedBy         *int                   `json:"revoked_by,omitempty" db:"revoked_by"`
	Notes             *string                `json:"notes,omitempty" db:"notes"`
	Metadata          map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedBy         int                    `json:"created_by" db:"created_by"`
	CreatedAt         time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at" db:"updated_at"`

	Hold *TicketHold `json:"-" db:"-"`
}

func (l *PurchaseLink) IsAnonymous() bool {
	return l.AssignedUserID == nil
}

func (l *PurchaseLink) IsUnlimited() bool {
	return !l.QuantityMode.IsLimited()
}

func (l *PurchaseLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// RemainingQuantity nil 代表不限量
func (l *PurchaseLink) RemainingQuantity() *int {
	if l.IsUnlimited() || l.QuantityLimit == nil {
		return nil
	}
	remaining := *l.QuantityLimit - l.QuantityPurchased
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

func (l *PurchaseLink) IsExhausted() bool {
	remaining := l.RemainingQuantity()
	return remaining != nil && *remaining <= 0
}

// IsUsable requires Hold to be loaded; an unloaded hold counts as unusable.
func (l *PurchaseLink) IsUsable(now time.Time) bool {
	if !l.Status.IsUsable() || l.IsExpired(now) || l.IsExhausted() {
		return false
	}
	return l.Hold != nil && l.Hold.IsUsable(now)
}

// CanBeUsedByUser 匿名連結任何人可用；指定使用者的連結只有本人可用
func (l *PurchaseLink) CanBeUsedByUser(userID *int) bool {
	if l.AssignedUserID == nil {
		return true
	}
	return userID != nil && *userID == *l.AssignedUserID
}

// AllowsQuantity 判斷 link 剩餘額度是否足夠
func (l *PurchaseLink) AllowsQuantity(quantity int) bool {
	remaining := l.RemainingQuantity()
	return remaining == nil || quantity <= *remaining
}

// UpdatePurchaseLinkParams ClearExpiresAt 為 true 時 expires_at 設為 NULL
type UpdatePurchaseLinkParams struct {
	Name           *string
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	Notes          *string
	Metadata       map[string]interface{}
}

// PurchaseLinkAccess 每次開啟連結的紀錄，只用於分析
type PurchaseLinkAccess struct {
	ID                 int       `json:"id" db:"id"`
	PurchaseLinkID     int       `json:"purchase_link_id" db:"purchase_link_id"`
	UserID             *int      `json:"user_id,omitempty" db:"user_id"`
	IPAddress          *string   `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent          *string   `json:"user_agent,omitempty" db:"user_agent"`
	Referer            *string   `json:"referer,omitempty" db:"referer"`
	SessionID          *string   `json:"session_id,omitempty" db:"session_id"`
	ResultedInPurchase bool      `json:"resulted_in_purchase" db:"resulted_in_purchase"`
	AccessedAt         time.Time `json:"accessed_at" db:"accessed_at"`
}

// AccessInput 由 handler 從 request 組出
type AccessInput struct {
	UserID    *int
	IPAddress string
	UserAgent string
	Referer   string
	SessionID string
}

// LinkAnalytics access → purchase funnel
type LinkAnalytics struct {
	PurchaseLinkID  int        `json:"purchase_link_id"`
	TotalAccesses   int        `json:"total_accesses"`
	UniqueVisitors  int        `json:"unique_visitors"`
	ConvertedAccess int        `json:"converted_accesses"`
	ConversionRate  float64    `json:"conversion_rate"`
	PurchasedUnits  int        `json:"purchased_units"`
	Revenue         int        `json:"revenue"`
	TotalSavings    int        `json:"total_savings"`
	LastAccessedAt  *time.Time `json:"last_accessed_at,omitempty"`
}
