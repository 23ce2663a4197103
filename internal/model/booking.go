package model

import "time"

// BookingStatus 訂位狀態類型
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsValid 驗證狀態是否有效
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

// CountsAgainstInventory pending 與 confirmed 都會佔用庫存
func (s BookingStatus) CountsAgainstInventory() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	transitions := map[BookingStatus][]BookingStatus{
		BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
		BookingStatusConfirmed: {BookingStatusCancelled},
		BookingStatusCancelled: {}, // 不能轉換到任何狀態
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}

// Booking 一張票一筆，Quantity 永遠是 1
type Booking struct {
	ID                 int           `json:"id" db:"id"`
	BookingNumber      string        `json:"booking_number" db:"booking_number"`
	QRCodeIdentifier   string        `json:"qr_code_identifier" db:"qr_code_identifier"`
	TransactionID      int           `json:"transaction_id" db:"transaction_id"`
	UserID             *int          `json:"user_id,omitempty" db:"user_id"`
	TicketDefinitionID int           `json:"ticket_definition_id" db:"ticket_definition_id"`
	EventID            int           `json:"event_id" db:"event_id"`
	EventOccurrenceID  int           `json:"event_occurrence_id" db:"event_occurrence_id"`
	Quantity           int           `json:"quantity" db:"quantity"`
	PriceAtBooking     int           `json:"price_at_booking" db:"price_at_booking"`
	Currency           string        `json:"currency" db:"currency"`
	Status             BookingStatus `json:"status" db:"status"`
	MaxAllowedCheckIns int           `json:"max_allowed_check_ins" db:"max_allowed_check_ins"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// TransactionStatus 交易狀態
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// TransactionSourceTicketHold 標記來自 purchase link 的交易
const TransactionSourceTicketHold = "ticket_hold"

type Transaction struct {
	ID             int                    `json:"id" db:"id"`
	UserID         *int                   `json:"user_id,omitempty" db:"user_id"`
	TotalAmount    int                    `json:"total_amount" db:"total_amount"`
	Currency       string                 `json:"currency" db:"currency"`
	Status         TransactionStatus      `json:"status" db:"status"`
	PaymentGateway string                 `json:"payment_gateway" db:"payment_gateway"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at" db:"updated_at"`
}

// PurchaseLinkPurchase 每筆 booking 對應一筆，記錄實際成交單價
type PurchaseLinkPurchase struct {
	ID                int       `json:"id" db:"id"`
	PurchaseLinkID    int       `json:"purchase_link_id" db:"purchase_link_id"`
	BookingID         int       `json:"booking_id" db:"booking_id"`
	TransactionID     int       `json:"transaction_id" db:"transaction_id"`
	UserID            *int      `json:"user_id,omitempty" db:"user_id"`
	AccessID          *int      `json:"access_id,omitempty" db:"access_id"`
	QuantityPurchased int       `json:"quantity_purchased" db:"quantity_purchased"`
	UnitPrice         int       `json:"unit_price" db:"unit_price"`
	OriginalPrice     int       `json:"original_price" db:"original_price"`
	Currency          string    `json:"currency" db:"currency"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// PurchaseItem 購買請求中的一行
type PurchaseItem struct {
	TicketDefinitionID int `json:"ticket_definition_id" binding:"required"`
	Quantity           int `json:"quantity" binding:"required,min=1"`
}

// LineTotal 單一票種的計價結果
type LineTotal struct {
	TicketDefinitionID int         `json:"ticket_definition_id"`
	TicketName         string      `json:"ticket_name"`
	Quantity           int         `json:"quantity"`
	PricingMode        PricingMode `json:"pricing_mode"`
	UnitPrice          int         `json:"unit_price"`
	OriginalPrice      int         `json:"original_price"`
	LineTotal          int         `json:"line_total"`
	Savings            int         `json:"savings"`
	SavingsPercentage  float64     `json:"savings_percentage"`
	IsFree             bool        `json:"is_free"`
}

type OrderTotals struct {
	Items        []LineTotal `json:"items"`
	Subtotal     int         `json:"subtotal"`
	TotalSavings int         `json:"total_savings"`
	Currency     string      `json:"currency"`
}

func (o OrderTotals) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// PurchaseResult Purchase Processor 的輸出
type PurchaseResult struct {
	Transaction *Transaction            `json:"transaction"`
	Bookings    []*Booking              `json:"bookings"`
	Purchases   []*PurchaseLinkPurchase `json:"purchases"`
	Totals      OrderTotals             `json:"totals"`
}
