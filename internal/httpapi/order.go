package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"

	"github.com/velmar/orderdesk/internal/domain/order"
)

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var req order.CheckoutRequest
	err = decodeObj(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "cartId":
			req.CartID, err = d.Str()
		case "couponCode":
			req.CouponCode, err = d.Str()
		case "shippingAddressId":
			req.ShippingAddressID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil || req.CartID == "" {
		writeError(r.Context(), w, badRequest("malformed checkout request"))
		return
	}
	req.Actor = actorFromContext(r.Context())

	o, err := h.orders.Checkout(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o, nil)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	history, err := h.orders.History(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o, history)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	if userID == "" {
		writeError(r.Context(), w, badRequest("userId query parameter required"))
		return
	}

	limit, err := intQuery(q.Get("limit"))
	if err != nil {
		writeError(r.Context(), w, badRequest("limit must be an integer"))
		return
	}
	offset, err := intQuery(q.Get("offset"))
	if err != nil {
		writeError(r.Context(), w, badRequest("offset must be an integer"))
		return
	}

	orders, err := h.orders.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orders")
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i], nil)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var (
		targetStatus    string
		expectedVersion int64
	)
	err = decodeObj(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "targetStatus":
			targetStatus, err = d.Str()
		case "expectedVersion":
			expectedVersion, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(r.Context(), w, badRequest("malformed transition request"))
		return
	}

	target, err := order.ParseStatus(targetStatus)
	if err != nil {
		writeError(r.Context(), w, badRequest(err.Error()))
		return
	}

	o, err := h.orders.TransitionStatus(r.Context(), r.PathValue("id"), target, expectedVersion, actorFromContext(r.Context()))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o, nil)
	writeJSON(w, http.StatusOK, &e)
}

func intQuery(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// encodeOrder writes the order JSON representation, with the status ledger
// when history is non-nil.
func encodeOrder(e *jx.Encoder, o *order.Order, history []order.HistoryEntry) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("cartId")
	e.Str(o.CartID)
	if o.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(o.CouponCode)
	}
	if o.FreeShipping {
		e.FieldStart("freeShipping")
		e.Bool(true)
	}
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(l.ProductID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unitPrice")
		e.Float64(l.UnitPrice.InexactFloat64())
		e.FieldStart("subtotal")
		e.Float64(l.Subtotal.InexactFloat64())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	e.Float64(o.Subtotal.InexactFloat64())
	e.FieldStart("discount")
	e.Float64(o.Discount.InexactFloat64())
	e.FieldStart("tax")
	e.Float64(o.Tax.InexactFloat64())
	e.FieldStart("total")
	e.Float64(o.Total.InexactFloat64())
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("version")
	e.Int64(o.Version)
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	if history != nil {
		e.FieldStart("history")
		e.ArrStart()
		for _, entry := range history {
			e.ObjStart()
			if entry.From != nil {
				e.FieldStart("from")
				e.Str(string(*entry.From))
			}
			e.FieldStart("to")
			e.Str(string(entry.To))
			e.FieldStart("actor")
			e.Str(entry.Actor)
			e.FieldStart("occurredAt")
			e.Str(entry.OccurredAt.UTC().Format(time.RFC3339))
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}
