package apperrors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrTicketDefinitionNotFound = errors.New("ticket definition not found")
	ErrEventOccurrenceNotFound  = errors.New("event occurrence not found")
	ErrUserNotFound             = errors.New("user not found")
	ErrHoldNotFound             = errors.New("ticket hold not found")
	ErrLinkNotFound             = errors.New("purchase link not found")
	ErrAccessNotFound           = errors.New("purchase link access not found")
	ErrInvalidInput             = errors.New("invalid input")
	ErrInternalServerError      = errors.New("internal server error")
	ErrDuplicateCode            = errors.New("duplicate purchase link code")

	ErrInsufficientInventory     = errors.New("insufficient inventory")
	ErrHoldNotActive             = errors.New("ticket hold is no longer active")
	ErrLinkNotUsable             = errors.New("purchase link is not usable")
	ErrInsufficientHoldInventory = errors.New("insufficient hold inventory")
	ErrUserNotAuthorizedForLink  = errors.New("user is not authorized for this purchase link")
	ErrAllocationHasPurchases    = errors.New("allocation already has purchases")
)

// InsufficientInventoryError 建立或更新 hold 時，要求的數量超過可用庫存
// Purchased 不為 0 時代表要求的配額低於已售出數量
type InsufficientInventoryError struct {
	TicketDefinitionID int
	TicketName         string
	Requested          int
	Available          int
	Purchased          int
}

func (e *InsufficientInventoryError) Error() string {
	name := ticketLabel(e.TicketName, e.TicketDefinitionID)
	if e.Purchased > e.Requested {
		return fmt.Sprintf("cannot allocate %d of %s: %d already purchased", e.Requested, name, e.Purchased)
	}
	return fmt.Sprintf("insufficient inventory for %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

// LinkNotUsableError carries the user-facing reason.
type LinkNotUsableError struct {
	Reason string
}

func (e *LinkNotUsableError) Error() string {
	return "purchase link is not usable: " + e.Reason
}

func (e *LinkNotUsableError) Is(target error) bool {
	return target == ErrLinkNotUsable
}

func NewLinkNotUsable(format string, args ...interface{}) error {
	return &LinkNotUsableError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientHoldInventoryError 購買數量超過 allocation 剩餘數量，或 hold 內沒有該票種
type InsufficientHoldInventoryError struct {
	TicketDefinitionID int
	TicketName         string
	Requested          int
	Available          int
}

func (e *InsufficientHoldInventoryError) Error() string {
	name := ticketLabel(e.TicketName, e.TicketDefinitionID)
	return fmt.Sprintf("insufficient hold inventory for %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientHoldInventoryError) Is(target error) bool {
	return target == ErrInsufficientHoldInventory
}

func ticketLabel(name string, id int) string {
	if name == "" {
		return fmt.Sprintf("ticket definition %d", id)
	}
	return strconv.Quote(name)
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors 收集所有欄位錯誤，一次回傳
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrInvalidInput
}

func (v *ValidationErrors) Add(field, format string, args ...interface{}) {
	*v = append(*v, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns nil when nothing was collected so callers can `return v.OrNil()`.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
