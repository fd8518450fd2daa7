package rules

// DefaultGlobalMOQ applies to every product without its own MOQ rule.
const DefaultGlobalMOQ = 6

func intPtr(v int) *int { return &v }

// Default returns the storefront's built-in rule tables. Each call returns a
// fresh Config, so callers may modify it before passing it to New.
func Default() Config {
	return Config{
		SchemaVersion: "v1.2.0",
		GlobalMOQ:     DefaultGlobalMOQ,
		QuantityLimits: []QuantityLimit{
			{ProductID: 161, MaxQuantity: 500},
			{ProductID: 162, MaxQuantity: 200},
			{ProductID: 175, MaxQuantity: 24},
		},
		MOQRules: []MOQRule{
			{ProductID: 161, MinQuantity: 1, Reason: "Sold individually to trial buyers"},
			{ProductID: 162, MinQuantity: 2, Reason: "Packed in pairs"},
			{ProductID: 188, MinQuantity: 12, Reason: "Sold by the carton"},
		},
		WholesaleTiers: []WholesaleTier{
			{MinQuantity: 10, Discount: 0.05, Label: "Wholesale 5%"},
			{MinQuantity: 50, Discount: 0.10, Label: "Wholesale 10%"},
			{MinQuantity: 100, Discount: 0.15, Label: "Wholesale 15%"},
		},
		QuantityDiscounts: []QuantityDiscountRule{
			{
				ProductID:  161,
				Name:       "Mini Electric Tandoor",
				BasePrice:  450,
				FloorPrice: 370,
				Tiers: []DiscountTier{
					{MinQuantity: 1, MaxQuantity: intPtr(5), UnitPrice: 450, Label: LabelRegularPrice},
					{MinQuantity: 6, MaxQuantity: intPtr(19), UnitPrice: 420, Label: "Trade Price"},
					{MinQuantity: 20, MaxQuantity: intPtr(49), UnitPrice: 400, Label: "Bulk Price"},
					{MinQuantity: 50, UnitPrice: 380, Label: "Distributor Price"},
				},
				ProgressiveDiscount: &ProgressiveDiscount{
					StartAfterQuantity: 50,
					QuantityStep:       10,
					DiscountPercent:    2,
				},
			},
			{
				ProductID:  162,
				Name:       "Commercial Gas Tandoor",
				BasePrice:  1250,
				FloorPrice: 1050,
				Tiers: []DiscountTier{
					{MinQuantity: 2, MaxQuantity: intPtr(9), UnitPrice: 1250, Label: LabelRegularPrice},
					{MinQuantity: 10, MaxQuantity: intPtr(24), UnitPrice: 1175, Label: "Trade Price"},
					{MinQuantity: 25, UnitPrice: 1100, Label: "Distributor Price"},
				},
			},
		},
		ShippingRestrictions: ShippingRestriction{
			RestrictedZones:      []string{"international", "islands"},
			RestrictedCategories: []string{"gas-appliances", "charcoal"},
			RestrictedProductIDs: []int{162, 175},
		},
	}
}
