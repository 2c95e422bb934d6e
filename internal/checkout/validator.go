package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
)

// Validator checks an envelope for structural completeness, per-item catalog
// consistency, and total-amount reconciliation. It never mutates the order
// input fields.
type Validator struct {
	catalog catalog.Lookup
	now     func() time.Time
}

// NewValidator constructs a Validator using the given catalog lookup.
func NewValidator(lookup catalog.Lookup) *Validator {
	return &Validator{
		catalog: lookup,
		now:     time.Now,
	}
}

// Validate runs the three validation phases and returns the verdict. Phases
// short-circuit: a phase with errors stops the later phases. A verdict with
// errors is a successful invocation, not a fault; the error return is reserved
// for context cancellation.
func (v *Validator) Validate(ctx context.Context, env Envelope) (ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return ValidationResult{}, err
	}

	errs := v.checkRequiredFields(env)
	if len(errs) == 0 {
		itemErrs, err := v.checkItems(ctx, env.Items)
		if err != nil {
			return ValidationResult{}, err
		}
		errs = append(errs, itemErrs...)
	}
	if len(errs) == 0 {
		errs = append(errs, v.checkTotalAmount(env)...)
	}

	return ValidationResult{
		IsValid:     len(errs) == 0,
		Errors:      errs,
		ValidatedAt: v.now().UTC(),
	}, nil
}

// checkRequiredFields is phase 1: top-level fields present and items non-empty.
func (v *Validator) checkRequiredFields(env Envelope) []string {
	var errs []string
	if env.OrderID == "" {
		errs = append(errs, "Missing required field: orderId")
	}
	if env.UserID == "" {
		errs = append(errs, "Missing required field: userId")
	}
	if env.Items == nil {
		errs = append(errs, "Missing required field: items")
	} else if len(env.Items) == 0 {
		errs = append(errs, "Order must contain at least one item")
	}
	if env.TotalAmount == nil {
		errs = append(errs, "Missing required field: totalAmount")
	}
	return errs
}

// checkItems is phase 2: catalog lookups run concurrently, one slot per item,
// so the reported errors stay in item order regardless of completion order.
func (v *Validator) checkItems(ctx context.Context, items []Item) ([]string, error) {
	slots := make([][]string, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			slots[i] = v.checkItem(gctx, i+1, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var errs []string
	for _, slot := range slots {
		errs = append(errs, slot...)
	}
	return errs, nil
}

func (v *Validator) checkItem(ctx context.Context, pos int, item Item) []string {
	if item.ProductID == "" {
		return []string{fmt.Sprintf("Item %d: Missing productId", pos)}
	}
	switch {
	case item.Quantity == 0:
		return []string{fmt.Sprintf("Item %d: Missing quantity", pos)}
	case item.Quantity < 0:
		return []string{fmt.Sprintf("Item %d: Quantity must be positive", pos)}
	}

	product, err := v.catalog.Get(ctx, item.ProductID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return []string{fmt.Sprintf("Item %d: Product %s not found", pos, item.ProductID)}
	}
	if err != nil {
		// Transient lookup faults stay scoped to this item; the other
		// items are still evaluated.
		return []string{fmt.Sprintf("Item %d: Error validating product - %v", pos, err)}
	}

	var errs []string
	if product.Stock != nil && *product.Stock < item.Quantity {
		errs = append(errs, fmt.Sprintf(
			"Item %d: Insufficient stock for %s (requested: %d, available: %d)",
			pos, item.ProductID, item.Quantity, *product.Stock,
		))
	}
	if item.Price != nil && !AmountsEqual(product.Price, *item.Price) {
		errs = append(errs, fmt.Sprintf(
			"Item %d: Price mismatch for %s (expected: %g, received: %g)",
			pos, item.ProductID, product.Price, *item.Price,
		))
	}
	return errs
}

// checkTotalAmount is phase 3: recompute the total from priced items and
// compare against the claimed amount. The claim is never silently corrected.
func (v *Validator) checkTotalAmount(env Envelope) []string {
	var calculated float64
	for _, item := range env.Items {
		if item.Price != nil {
			calculated += *item.Price * float64(item.Quantity)
		}
	}

	var claimed float64
	if env.TotalAmount != nil {
		claimed = *env.TotalAmount
	}

	if !AmountsEqual(calculated, claimed) {
		return []string{fmt.Sprintf(
			"Total amount mismatch: expected %.2f, received %.2f",
			calculated, claimed,
		)}
	}
	return nil
}
