package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velmar/orderdesk/internal/domain/product"
	"github.com/velmar/orderdesk/internal/domain/tax"
)

// memCartRepo keeps carts in memory and replicates the line-merge behaviour
// of the SQL repository.
type memCartRepo struct {
	carts map[string]*Cart
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: make(map[string]*Cart)}
}

func (m *memCartRepo) Create(_ context.Context, c *Cart) error {
	cp := *c
	m.carts[c.ID] = &cp
	return nil
}

func (m *memCartRepo) Get(_ context.Context, id string) (*Cart, error) {
	c, ok := m.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Lines = append([]Line(nil), c.Lines...)
	return &cp, nil
}

func (m *memCartRepo) AddLine(_ context.Context, cartID string, line Line) error {
	c, ok := m.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == line.ProductID {
			c.Lines[i].Quantity += line.Quantity
			return nil
		}
	}
	c.Lines = append(c.Lines, line)
	return nil
}

func (m *memCartRepo) SetLineQuantity(_ context.Context, cartID, productID string, quantity int) error {
	c, ok := m.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			return nil
		}
	}
	return ErrLineNotFound
}

func (m *memCartRepo) DeleteLine(_ context.Context, cartID, productID string) error {
	c, ok := m.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func newService(products ...product.Product) (*Service, *memCartRepo) {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	repo := newMemCartRepo()
	taxes := tax.NewStaticTable(decimal.RequireFromString("0.08"), nil)
	return NewService(repo, &mockProductRepo{byID: byID}, taxes), repo
}

func testProduct(id, price string) product.Product {
	return product.Product{
		ID:     id,
		SKU:    "SKU-" + id,
		Name:   "Product " + id,
		Price:  decimal.RequireFromString(price),
		Active: true,
	}
}

func TestCreate_OwnerRequired(t *testing.T) {
	svc, _ := newService()

	tests := []struct {
		name      string
		userID    string
		sessionID string
		wantErr   bool
	}{
		{"user cart", "u1", "", false},
		{"session cart", "", "s1", false},
		{"no owner", "", "", true},
		{"both owners", "u1", "s1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := svc.Create(context.Background(), tt.userID, tt.sessionID, "")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOwnerRequired)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, c.ID)
			assert.Equal(t, StatusActive, c.Status)
		})
	}
}

func TestAddLine_MergesDuplicateProduct(t *testing.T) {
	svc, _ := newService(testProduct("p1", "12.50"))
	c, err := svc.Create(context.Background(), "u1", "", "")
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), c.ID, "p1", 2)
	require.NoError(t, err)
	got, err := svc.AddLine(context.Background(), c.ID, "p1", 3)
	require.NoError(t, err)

	require.Len(t, got.Lines, 1, "same product must merge into one line")
	assert.Equal(t, 5, got.Lines[0].Quantity)
}

func TestAddLine_PriceFromCatalog(t *testing.T) {
	svc, _ := newService(testProduct("p1", "9.95"))
	c, err := svc.Create(context.Background(), "u1", "", "")
	require.NoError(t, err)

	got, err := svc.AddLine(context.Background(), c.ID, "p1", 1)

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.95").Equal(got.Lines[0].UnitPrice))
}

func TestAddLine_Validation(t *testing.T) {
	svc, repo := newService(testProduct("p1", "10.00"))
	c, err := svc.Create(context.Background(), "u1", "", "")
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), c.ID, "p1", 0)
	var invalidQty *InvalidQuantityError
	assert.ErrorAs(t, err, &invalidQty)

	_, err = svc.AddLine(context.Background(), c.ID, "p1", -3)
	assert.ErrorAs(t, err, &invalidQty)

	_, err = svc.AddLine(context.Background(), c.ID, "unknown", 1)
	assert.ErrorIs(t, err, product.ErrNotFound)

	repo.carts[c.ID].Status = StatusConverted
	_, err = svc.AddLine(context.Background(), c.ID, "p1", 1)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestUpdateQuantity(t *testing.T) {
	svc, _ := newService(testProduct("p1", "10.00"))
	c, err := svc.Create(context.Background(), "u1", "", "")
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), c.ID, "p1", 2)
	require.NoError(t, err)

	got, err := svc.UpdateQuantity(context.Background(), c.ID, "p1", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Lines[0].Quantity)

	_, err = svc.UpdateQuantity(context.Background(), c.ID, "p2", 1)
	assert.ErrorIs(t, err, ErrLineNotFound)

	var invalidQty *InvalidQuantityError
	_, err = svc.UpdateQuantity(context.Background(), c.ID, "p1", 0)
	assert.ErrorAs(t, err, &invalidQty)
}

func TestRemoveLine(t *testing.T) {
	svc, _ := newService(testProduct("p1", "10.00"), testProduct("p2", "5.00"))
	c, err := svc.Create(context.Background(), "u1", "", "")
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), c.ID, "p1", 1)
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), c.ID, "p2", 1)
	require.NoError(t, err)

	got, err := svc.RemoveLine(context.Background(), c.ID, "p1")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "p2", got.Lines[0].ProductID)

	_, err = svc.RemoveLine(context.Background(), c.ID, "p1")
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestTotals(t *testing.T) {
	svc, _ := newService(testProduct("p1", "12.50"))
	c, err := svc.Create(context.Background(), "u1", "", "")
	require.NoError(t, err)
	got, err := svc.AddLine(context.Background(), c.ID, "p1", 2)
	require.NoError(t, err)

	totals, err := svc.Totals(context.Background(), got)

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25.00").Equal(totals.Subtotal), "subtotal %s", totals.Subtotal)
	assert.True(t, decimal.RequireFromString("2.00").Equal(totals.Tax), "tax %s", totals.Tax)
	assert.True(t, decimal.RequireFromString("27.00").Equal(totals.Total), "total %s", totals.Total)
}
