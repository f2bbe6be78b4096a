package httpapi

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/velmar/orderdesk/internal/domain/cart"
)

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var userID, sessionID, jurisdiction string
	err = decodeObj(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			userID, err = d.Str()
		case "sessionId":
			sessionID, err = d.Str()
		case "jurisdiction":
			jurisdiction, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(r.Context(), w, badRequest("malformed cart request"))
		return
	}

	c, err := h.carts.Create(r.Context(), userID, sessionID, jurisdiction)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	h.writeCart(r.Context(), w, http.StatusCreated, c)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	h.writeCart(r.Context(), w, http.StatusOK, c)
}

func (h *Handler) addCartLine(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var (
		productID string
		quantity  int
	)
	err = decodeObj(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			productID, err = d.Str()
		case "quantity":
			quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil || productID == "" {
		writeError(r.Context(), w, badRequest("malformed cart line request"))
		return
	}

	c, err := h.carts.AddLine(r.Context(), r.PathValue("id"), productID, quantity)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	h.writeCart(r.Context(), w, http.StatusOK, c)
}

func (h *Handler) updateCartLine(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	quantity := 0
	err = decodeObj(data, func(d *jx.Decoder, key string) error {
		var err error
		if key == "quantity" {
			quantity, err = d.Int()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(r.Context(), w, badRequest("malformed quantity update"))
		return
	}

	c, err := h.carts.UpdateQuantity(r.Context(), r.PathValue("id"), r.PathValue("productID"), quantity)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	h.writeCart(r.Context(), w, http.StatusOK, c)
}

func (h *Handler) removeCartLine(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveLine(r.Context(), r.PathValue("id"), r.PathValue("productID"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	h.writeCart(r.Context(), w, http.StatusOK, c)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(p.ID)
		e.FieldStart("sku")
		e.Str(p.SKU)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("price")
		e.Float64(p.Price.InexactFloat64())
		e.FieldStart("category")
		e.Str(p.Category)
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// writeCart encodes a cart with its lines and computed totals.
func (h *Handler) writeCart(ctx context.Context, w http.ResponseWriter, status int, c *cart.Cart) {
	totals, err := h.carts.Totals(ctx, c)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	if c.UserID != "" {
		e.FieldStart("userId")
		e.Str(c.UserID)
	}
	if c.SessionID != "" {
		e.FieldStart("sessionId")
		e.Str(c.SessionID)
	}
	e.FieldStart("status")
	e.Str(string(c.Status))
	e.FieldStart("jurisdiction")
	e.Str(c.Jurisdiction)
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range c.Lines {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(l.ProductID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unitPrice")
		e.Float64(l.UnitPrice.InexactFloat64())
		e.FieldStart("subtotal")
		e.Float64(l.Subtotal().InexactFloat64())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	e.Float64(totals.Subtotal.InexactFloat64())
	e.FieldStart("tax")
	e.Float64(totals.Tax.InexactFloat64())
	e.FieldStart("total")
	e.Float64(totals.Total.InexactFloat64())
	e.ObjEnd()
	writeJSON(w, status, &e)
}
