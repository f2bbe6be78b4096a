package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/velmar/orderdesk/internal/domain/product"
	"github.com/velmar/orderdesk/internal/domain/tax"
)

// Service encapsulates cart business logic: creation, line mutation with
// quantity merging, and total computation.
type Service struct {
	carts    Repository
	products product.Repository
	tax      tax.Calculator
}

// NewService creates a cart Service with the required dependencies.
func NewService(carts Repository, products product.Repository, taxes tax.Calculator) *Service {
	return &Service{
		carts:    carts,
		products: products,
		tax:      taxes,
	}
}

// Create opens a new ACTIVE cart for the given owner. Exactly one of userID
// or sessionID must be non-empty.
func (s *Service) Create(ctx context.Context, userID, sessionID, jurisdiction string) (*Cart, error) {
	if (userID == "") == (sessionID == "") {
		return nil, ErrOwnerRequired
	}

	c := &Cart{
		ID:           uuid.New().String(),
		UserID:       userID,
		SessionID:    sessionID,
		Status:       StatusActive,
		Jurisdiction: jurisdiction,
	}
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return c, nil
}

// Get loads a cart with its lines.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	return s.carts.Get(ctx, id)
}

// AddLine adds quantity of a product to the cart, merging with an existing
// line for the same product instead of duplicating it. The unit price is
// resolved from the catalog at add time.
func (s *Service) AddLine(ctx context.Context, cartID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}

	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, ErrNotActive
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	line := Line{ProductID: p.ID, Quantity: quantity, UnitPrice: p.Price}
	if err := s.carts.AddLine(ctx, cartID, line); err != nil {
		return nil, errors.Wrapf(err, "add line for product %s", productID)
	}
	return s.carts.Get(ctx, cartID)
}

// UpdateQuantity replaces the quantity of an existing line.
func (s *Service) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}

	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, ErrNotActive
	}

	if err := s.carts.SetLineQuantity(ctx, cartID, productID, quantity); err != nil {
		return nil, err
	}
	return s.carts.Get(ctx, cartID)
}

// RemoveLine deletes a line from the cart.
func (s *Service) RemoveLine(ctx context.Context, cartID, productID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, ErrNotActive
	}

	if err := s.carts.DeleteLine(ctx, cartID, productID); err != nil {
		return nil, err
	}
	return s.carts.Get(ctx, cartID)
}

// Totals recomputes the cart's subtotal from its current lines and applies
// the jurisdiction tax rate.
func (s *Service) Totals(ctx context.Context, c *Cart) (Totals, error) {
	subtotal := c.Subtotal()

	taxAmount, err := s.tax.Amount(ctx, subtotal, c.Jurisdiction)
	if err != nil {
		return Totals{}, errors.Wrap(err, "compute tax")
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      taxAmount,
		Total:    subtotal.Add(taxAmount),
	}, nil
}
