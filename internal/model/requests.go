package model

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
)

const (
	maxNameLength  = 255
	maxNotesLength = 5000
)

// AllocationInput 建立或更新 hold 時的單一 allocation
type AllocationInput struct {
	TicketDefinitionID int         `json:"ticket_definition_id"`
	AllocatedQuantity  int         `json:"allocated_quantity"`
	PricingMode        PricingMode `json:"pricing_mode"`
	CustomPrice        *int        `json:"custom_price,omitempty"`
	DiscountPercentage *float64    `json:"discount_percentage,omitempty"`
}

// CreateHoldRequest 建立 ticket hold 請求
type CreateHoldRequest struct {
	EventOccurrenceID int               `json:"event_occurrence_id"`
	OrganizerID       *int              `json:"organizer_id,omitempty"`
	Name              string            `json:"name"`
	Description       *string           `json:"description,omitempty"`
	InternalNotes     *string           `json:"internal_notes,omitempty"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	Allocations       []AllocationInput `json:"allocations"`
}

func (r CreateHoldRequest) Validate(now time.Time) error {
	var errs apperrors.ValidationErrors

	if r.EventOccurrenceID <= 0 {
		errs.Add("event_occurrence_id", "is required")
	}
	if r.OrganizerID != nil && *r.OrganizerID <= 0 {
		errs.Add("organizer_id", "must be a positive integer")
	}
	validateName(&errs, "name", r.Name)
	validateOptionalText(&errs, "description", r.Description, maxNotesLength)
	validateOptionalText(&errs, "internal_notes", r.InternalNotes, maxNotesLength)
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		errs.Add("expires_at", "must be in the future")
	}
	if len(r.Allocations) == 0 {
		errs.Add("allocations", "at least one allocation is required")
	}
	validateAllocations(&errs, r.Allocations)

	return errs.OrNil()
}

// UpdateHoldRequest Allocations 為 nil 時保留原有配額；不為 nil 時整組替換
type UpdateHoldRequest struct {
	Name          *string            `json:"name,omitempty"`
	Description   *string            `json:"description,omitempty"`
	InternalNotes *string            `json:"internal_notes,omitempty"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	Allocations   *[]AllocationInput `json:"allocations,omitempty"`
}

func (r UpdateHoldRequest) Validate(now time.Time) error {
	var errs apperrors.ValidationErrors

	if r.Name != nil {
		validateName(&errs, "name", *r.Name)
	}
	validateOptionalText(&errs, "description", r.Description, maxNotesLength)
	validateOptionalText(&errs, "internal_notes", r.InternalNotes, maxNotesLength)
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		errs.Add("expires_at", "must be in the future")
	}
	if r.Allocations != nil {
		if len(*r.Allocations) == 0 {
			errs.Add("allocations", "at least one allocation is required")
		}
		validateAllocations(&errs, *r.Allocations)
	}
	if r.Name == nil && r.Description == nil && r.InternalNotes == nil && r.ExpiresAt == nil && r.Allocations == nil {
		errs.Add("body", "at least one field is required")
	}

	return errs.OrNil()
}

func (r UpdateHoldRequest) Params() UpdateHoldParams {
	return UpdateHoldParams{
		Name:          r.Name,
		Description:   r.Description,
		InternalNotes: r.InternalNotes,
		ExpiresAt:     r.ExpiresAt,
	}
}

func validateAllocations(errs *apperrors.ValidationErrors, allocations []AllocationInput) {
	seen := make(map[int]bool, len(allocations))
	for i, a := range allocations {
		field := fmt.Sprintf("allocations.%d", i)
		if a.TicketDefinitionID <= 0 {
			errs.Add(field+".ticket_definition_id", "is required")
		} else if seen[a.TicketDefinitionID] {
			errs.Add(field+".ticket_definition_id", "duplicate ticket definition %d", a.TicketDefinitionID)
		}
		seen[a.TicketDefinitionID] = true

		if a.AllocatedQuantity < 1 {
			errs.Add(field+".allocated_quantity", "must be at least 1")
		}
		if !a.PricingMode.IsValid() {
			errs.Add(field+".pricing_mode", "must be one of original, fixed, percentage_discount, free")
			continue
		}
		if a.PricingMode.RequiresCustomPrice() {
			if a.CustomPrice == nil {
				errs.Add(field+".custom_price", "is required when pricing mode is fixed")
			} else if *a.CustomPrice < 0 {
				errs.Add(field+".custom_price", "must be at least 0")
			}
		}
		if a.PricingMode.RequiresDiscountPercentage() {
			if a.DiscountPercentage == nil {
				errs.Add(field+".discount_percentage", "is required when pricing mode is percentage_discount")
			} else if *a.DiscountPercentage < 0 || *a.DiscountPercentage > 100 {
				errs.Add(field+".discount_percentage", "must be between 0 and 100")
			}
		}
	}
}

// CreatePurchaseLinkRequest 建立 purchase link 請求
type CreatePurchaseLinkRequest struct {
	TicketHoldID   int                    `json:"ticket_hold_id"`
	Name           *string                `json:"name,omitempty"`
	AssignedUserID *int                   `json:"assigned_user_id,omitempty"`
	QuantityMode   QuantityMode           `json:"quantity_mode"`
	QuantityLimit  *int                   `json:"quantity_limit,omitempty"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	Notes          *string                `json:"notes,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

func (r CreatePurchaseLinkRequest) Validate(now time.Time) error {
	var errs apperrors.ValidationErrors

	if r.TicketHoldID <= 0 {
		errs.Add("ticket_hold_id", "is required")
	}
	if r.Name != nil {
		validateName(&errs, "name", *r.Name)
	}
	if r.AssignedUserID != nil && *r.AssignedUserID <= 0 {
		errs.Add("assigned_user_id", "must be a positive integer")
	}
	if !r.QuantityMode.IsValid() {
		errs.Add("quantity_mode", "must be one of unlimited, fixed, maximum")
	} else if r.QuantityMode.IsLimited() {
		if r.QuantityLimit == nil {
			errs.Add("quantity_limit", "is required unless quantity mode is unlimited")
		} else if *r.QuantityLimit < 1 {
			errs.Add("quantity_limit", "must be at least 1")
		}
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		errs.Add("expires_at", "must be in the future")
	}
	validateOptionalText(&errs, "notes", r.Notes, maxNotesLength)

	return errs.OrNil()
}

// UpdatePurchaseLinkRequest 數量相關欄位建立後不可修改
// expires_at 省略代表不變，要移除期限用 clear_expires_at
type UpdatePurchaseLinkRequest struct {
	Name           *string                `json:"name,omitempty"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	ClearExpiresAt bool                   `json:"clear_expires_at,omitempty"`
	Notes          *string                `json:"notes,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

func (r UpdatePurchaseLinkRequest) Validate(now time.Time) error {
	var errs apperrors.ValidationErrors

	if r.Name != nil {
		validateName(&errs, "name", *r.Name)
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		errs.Add("expires_at", "must be in the future")
	}
	if r.ClearExpiresAt && r.ExpiresAt != nil {
		errs.Add("clear_expires_at", "cannot be combined with expires_at")
	}
	validateOptionalText(&errs, "notes", r.Notes, maxNotesLength)
	if r.Name == nil && r.ExpiresAt == nil && !r.ClearExpiresAt && r.Notes == nil && r.Metadata == nil {
		errs.Add("body", "at least one of name, expires_at, clear_expires_at, notes or metadata is required")
	}

	return errs.OrNil()
}

func (r UpdatePurchaseLinkRequest) Params() UpdatePurchaseLinkParams {
	return UpdatePurchaseLinkParams{
		Name:           r.Name,
		ExpiresAt:      r.ExpiresAt,
		ClearExpiresAt: r.ClearExpiresAt,
		Notes:          r.Notes,
		Metadata:       r.Metadata,
	}
}

// PurchaseRequest LinkCode 與 UserID 由 handler 填入
type PurchaseRequest struct {
	LinkCode   string         `json:"-"`
	UserID     *int           `json:"-"`
	Items      []PurchaseItem `json:"items"`
	AccessID   *int           `json:"access_id,omitempty"`
	CouponCode *string        `json:"coupon_code,omitempty"`
}

func (r PurchaseRequest) Validate() error {
	var errs apperrors.ValidationErrors

	if strings.TrimSpace(r.LinkCode) == "" {
		errs.Add("link_code", "is required")
	}
	validateItems(&errs, r.Items)
	if r.AccessID != nil && *r.AccessID <= 0 {
		errs.Add("access_id", "must be a positive integer")
	}

	return errs.OrNil()
}

func validateItems(errs *apperrors.ValidationErrors, items []PurchaseItem) {
	if len(items) == 0 {
		errs.Add("items", "at least one item is required")
	}
	for i, item := range items {
		field := fmt.Sprintf("items.%d", i)
		if item.TicketDefinitionID <= 0 {
			errs.Add(field+".ticket_definition_id", "is required")
		}
		if item.Quantity < 1 {
			errs.Add(field+".quantity", "must be at least 1")
		}
	}
}

// ValidateItems 給 quote 使用，不需要 link code 以外的欄位
func ValidateItems(items []PurchaseItem) error {
	var errs apperrors.ValidationErrors
	validateItems(&errs, items)
	return errs.OrNil()
}

// MergeItems 合併重複票種，回傳順序依第一次出現
func MergeItems(items []PurchaseItem) []PurchaseItem {
	index := make(map[int]int, len(items))
	merged := make([]PurchaseItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.TicketDefinitionID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.TicketDefinitionID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func validateName(errs *apperrors.ValidationErrors, field, name string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		errs.Add(field, "is required")
		return
	}
	if len(trimmed) > maxNameLength {
		errs.Add(field, "must be at most %d characters", maxNameLength)
	}
}

func validateOptionalText(errs *apperrors.ValidationErrors, field string, value *string, max int) {
	if value != nil && len(*value) > max {
		errs.Add(field, "must be at most %d characters", max)
	}
}
