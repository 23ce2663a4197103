package model

// HoldStatus ticket hold 狀態
type HoldStatus string

const (
	HoldStatusActive   HoldStatus = "active"
	HoldStatusReleased HoldStatus = "released"
)

func (s HoldStatus) IsValid() bool {
	switch s {
	case HoldStatusActive, HoldStatusReleased:
		return true
	}
	return false
}

func (s HoldStatus) Label() string {
	switch s {
	case HoldStatusActive:
		return "Active"
	case HoldStatusReleased:
		return "Released"
	}
	return string(s)
}

// PricingMode 決定 allocation 的實際售價
type PricingMode string

const (
	PricingModeOriginal           PricingMode = "original"
	PricingModeFixed              PricingMode = "fixed"
	PricingModePercentageDiscount PricingMode = "percentage_discount"
	PricingModeFree               PricingMode = "free"
)

func (m PricingMode) IsValid() bool {
	switch m {
	case PricingModeOriginal, PricingModeFixed, PricingModePercentageDiscount, PricingModeFree:
		return true
	}
	return false
}

func (m PricingMode) Label() string {
	switch m {
	case PricingModeOriginal:
		return "Original Price"
	case PricingModeFixed:
		return "Fixed Price"
	case PricingModePercentageDiscount:
		return "Percentage Discount"
	case PricingModeFree:
		return "Free"
	}
	return string(m)
}

func (m PricingMode) RequiresCustomPrice() bool {
	return m == PricingModeFixed
}

func (m PricingMode) RequiresDiscountPercentage() bool {
	return m == PricingModePercentageDiscount
}

// LinkStatus purchase link 狀態
type LinkStatus string

const (
	LinkStatusActive    LinkStatus = "active"
	LinkStatusRevoked   LinkStatus = "revoked"
	LinkStatusExhausted LinkStatus = "exhausted"
	LinkStatusExpired   LinkStatus = "expired"
)

func (s LinkStatus) IsValid() bool {
	switch s {
	case LinkStatusActive, LinkStatusRevoked, LinkStatusExhausted, LinkStatusExpired:
		return true
	}
	return false
}

// IsUsable 只有 active 可以購買；其餘皆為終態
func (s LinkStatus) IsUsable() bool {
	return s == LinkStatusActive
}

func (s LinkStatus) Label() string {
	switch s {
	case LinkStatusActive:
		return "Active"
	case LinkStatusRevoked:
		return "Revoked"
	case LinkStatusExhausted:
		return "Exhausted"
	case LinkStatusExpired:
		return "Expired"
	}
	return string(s)
}

// QuantityMode 決定 link 可購買的總數量
type QuantityMode string

const (
	QuantityModeUnlimited QuantityMode = "unlimited"
	QuantityModeFixed     QuantityMode = "fixed"
	QuantityModeMaximum   QuantityMode = "maximum"
)

func (m QuantityMode) IsValid() bool {
	switch m {
	case QuantityModeUnlimited, QuantityModeFixed, QuantityModeMaximum:
		return true
	}
	return false
}

func (m QuantityMode) IsLimited() bool {
	return m == QuantityModeFixed || m == QuantityModeMaximum
}

func (m QuantityMode) Label() string {
	switch m {
	case QuantityModeUnlimited:
		return "Unlimited"
	case QuantityModeFixed:
		return "Fixed Quantity"
	case QuantityModeMaximum:
		return "Maximum Quantity"
	}
	return string(m)
}
