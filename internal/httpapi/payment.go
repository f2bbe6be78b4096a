package httpapi

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/velmar/orderdesk/internal/domain/order"
)

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	p, o, err := h.orders.InitiatePayment(r.Context(), r.PathValue("id"), actorFromContext(r.Context()))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("paymentId")
	e.Str(p.PaymentID)
	e.FieldStart("orderId")
	e.Str(p.OrderID)
	e.FieldStart("amount")
	e.Float64(p.Amount.InexactFloat64())
	e.FieldStart("status")
	e.Str(string(p.Status))
	e.FieldStart("orderStatus")
	e.Str(string(o.Status))
	e.FieldStart("orderVersion")
	e.Int64(o.Version)
	e.ObjEnd()
	writeJSON(w, http.StatusAccepted, &e)
}

func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var (
		orderID   string
		paymentID string
		status    string
	)
	err = decodeObj(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "orderId":
			orderID, err = d.Str()
		case "paymentId":
			paymentID, err = d.Str()
		case "status":
			status, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil || orderID == "" || paymentID == "" {
		writeError(r.Context(), w, badRequest("malformed payment callback"))
		return
	}

	ps, err := order.ParsePaymentStatus(status)
	if err != nil {
		writeError(r.Context(), w, badRequest(err.Error()))
		return
	}

	o, err := h.orders.RecordPaymentResult(r.Context(), orderID, paymentID, ps)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("accepted")
	e.Bool(true)
	e.FieldStart("orderStatus")
	e.Str(string(o.Status))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
