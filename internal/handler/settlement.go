package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/tripmarket-pricing/internal/domain/settlement"
)

// CalculateFees returns the payout split of an amount.
func (h *Handler) CalculateFees(w http.ResponseWriter, r *http.Request) {
	var req settlement.FeeRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "amount":
			req.Amount, err = d.Int64()
		case "fee_percentage":
			req.FeePercentage, err = readDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	fees, err := settlement.CalculateFees(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeFees(e, fees) })
}

// CalculateApplicationFee returns the platform fee for a charge.
func (h *Handler) CalculateApplicationFee(w http.ResponseWriter, r *http.Request) {
	var (
		total int64
		pct   decimal.Decimal
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "total_amount":
			total, err = d.Int64()
		case "fee_percentage":
			pct, err = readDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	fees, err := settlement.CalculateApplicationFee(total, pct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeFees(e, fees) })
}

// SettleBooking records the settlement of a booking for a partner. A repeated
// booking returns the stored settlement with 200 instead of 201, or 409 when
// the partner or amount differ.
func (h *Handler) SettleBooking(w http.ResponseWriter, r *http.Request) {
	req := settlement.SettleRequest{PartnerID: r.PathValue("partnerID")}
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "booking_id":
			req.BookingID, err = d.Str()
		case "amount":
			req.Amount, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.settlements.Settle(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, func(e *jx.Encoder) { encodeTransaction(e, res.Transaction, res.Replayed) })
}
