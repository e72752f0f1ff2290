package catalog

import "storefront/backend/internal/domain"

var promotionalCodes = []domain.PromotionalCode{
	{ID: 1, Title: "Welcome Offer", Code: "WELCOME10", Description: "10% off your first order", Percentage: 10, FirstPurchaseOnly: true},
	{ID: 2, Title: "Flash Sale", Code: "FLASH20", Description: "20% off everything for a limited time", Percentage: 20},
	{ID: 3, Title: "Weekend Deal", Code: "WEEKEND15", Description: "15% off orders placed this weekend", Percentage: 15},
	{ID: 4, Title: "New Member", Code: "NEWBIE25", Description: "25% off for newly registered buyers", Percentage: 25, FirstPurchaseOnly: true},
	{ID: 5, Title: "Free Shipping Boost", Code: "SHIP5", Description: "5% off to cover shipping", Percentage: 5},
	{ID: 6, Title: "Loyalty Reward", Code: "LOYAL30", Description: "30% off for returning customers", Percentage: 30},
}

// PromotionalCodes returns the static promotional catalog.
func PromotionalCodes() []domain.PromotionalCode {
	out := make([]domain.PromotionalCode, len(promotionalCodes))
	copy(out, promotionalCodes)
	return out
}
