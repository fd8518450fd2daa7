package rules

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// SupportedSchemaMajor is the rules-file major version this engine reads.
const SupportedSchemaMajor = "v1"

// ErrInvalidConfig wraps every rule-table problem reported by Validate.
var ErrInvalidConfig = errors.New("invalid rules config")

// Validate checks a rule set for internal consistency and returns every
// problem found, joined. A nil result means New will accept cfg.
func Validate(cfg Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if cfg.SchemaVersion != "" {
		v := normalizeVersion(cfg.SchemaVersion)
		switch {
		case !semver.IsValid(v):
			fail("schema_version %q is not a semantic version", cfg.SchemaVersion)
		case semver.Major(v) != SupportedSchemaMajor:
			fail("schema_version %q unsupported, want %s.x", cfg.SchemaVersion, SupportedSchemaMajor)
		}
	}

	if cfg.GlobalMOQ < 0 {
		fail("global_moq must not be negative, got %d", cfg.GlobalMOQ)
	}
	globalMOQ := cfg.GlobalMOQ
	if globalMOQ < 1 {
		globalMOQ = 1
	}

	moqs := make(map[int]int, len(cfg.MOQRules))
	for _, m := range cfg.MOQRules {
		if _, dup := moqs[m.ProductID]; dup {
			fail("duplicate moq rule for product %d", m.ProductID)
		}
		if m.MinQuantity < 1 {
			fail("moq for product %d must be at least 1, got %d", m.ProductID, m.MinQuantity)
		}
		moqs[m.ProductID] = m.MinQuantity
	}

	seenLimits := make(map[int]bool, len(cfg.QuantityLimits))
	for _, l := range cfg.QuantityLimits {
		if seenLimits[l.ProductID] {
			fail("duplicate quantity limit for product %d", l.ProductID)
		}
		seenLimits[l.ProductID] = true
		if l.MaxQuantity < 1 {
			fail("quantity limit for product %d must be at least 1, got %d", l.ProductID, l.MaxQuantity)
			continue
		}
		moq, ok := moqs[l.ProductID]
		if !ok {
			moq = globalMOQ
		}
		if moq > l.MaxQuantity {
			fail("product %d: minimum order %d exceeds maximum %d", l.ProductID, moq, l.MaxQuantity)
		}
	}

	for i, t := range cfg.WholesaleTiers {
		if t.MinQuantity < 1 {
			fail("wholesale tier %d: min_quantity must be at least 1", i)
		}
		if t.Discount < 0 || t.Discount >= 1 {
			fail("wholesale tier %d: discount %v outside [0, 1)", i, t.Discount)
		}
	}

	seenRules := make(map[int]bool, len(cfg.QuantityDiscounts))
	for _, r := range cfg.QuantityDiscounts {
		if seenRules[r.ProductID] {
			fail("duplicate quantity discount for product %d", r.ProductID)
		}
		seenRules[r.ProductID] = true
		errs = append(errs, validateDiscountRule(r)...)
	}

	return errors.Join(errs...)
}

func validateDiscountRule(r QuantityDiscountRule) []error {
	var errs []error
	fail := func(format string, args ...any) {
		prefix := fmt.Sprintf("product %d: ", r.ProductID)
		errs = append(errs, fmt.Errorf("%w: "+prefix+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if r.BasePrice <= 0 {
		fail("base_price must be positive")
	}
	if r.FloorPrice < 0 || r.FloorPrice > r.BasePrice {
		fail("floor_price %v must be within [0, base_price]", r.FloorPrice)
	}
	if len(r.Tiers) == 0 {
		fail("at least one tier is required")
	}

	tiers := cloneRule(r).Tiers
	for i, t := range tiers {
		last := i == len(tiers)-1
		if t.MinQuantity < 1 {
			fail("tier %d: min_quantity must be at least 1", i)
		}
		if t.UnitPrice <= 0 {
			fail("tier %d: unit_price must be positive", i)
		}
		if t.UnitPrice < r.FloorPrice {
			fail("tier %d: unit_price %v below floor %v", i, t.UnitPrice, r.FloorPrice)
		}
		if t.MaxQuantity == nil {
			if !last {
				fail("tier %d: only the last tier may be open-ended", i)
			}
		} else if *t.MaxQuantity < t.MinQuantity {
			fail("tier %d: max_quantity %d below min_quantity %d", i, *t.MaxQuantity, t.MinQuantity)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if prev.MaxQuantity != nil && t.MinQuantity != *prev.MaxQuantity+1 {
			fail("tier %d: min_quantity %d does not follow previous max %d", i, t.MinQuantity, *prev.MaxQuantity)
		}
		if t.UnitPrice > prev.UnitPrice {
			fail("tier %d: unit_price %v higher than previous tier %v", i, t.UnitPrice, prev.UnitPrice)
		}
	}

	if pd := r.ProgressiveDiscount; pd != nil {
		if pd.QuantityStep <= 0 {
			fail("progressive quantity_step must be positive")
		}
		if pd.DiscountPercent <= 0 || pd.DiscountPercent >= 100 {
			fail("progressive discount_percent %v outside (0, 100)", pd.DiscountPercent)
		}
		if pd.StartAfterQuantity < 0 {
			fail("progressive start_after_quantity must not be negative")
		}
	}
	return errs
}

// normalizeVersion adds the "v" prefix semver expects: "1.2.0" → "v1.2.0".
func normalizeVersion(v string) string {
	if v != "" && v[0] != 'v' {
		return "v" + v
	}
	return v
}
