package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"

	"rentara/internal/domain/payment"

	"github.com/sirupsen/logrus"
)

const maxCallbackBody = 64 << 10

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback *stkCallback `json:"stkCallback" validate:"required"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID" validate:"required"`
	ResultCode        *int              `json:"ResultCode" validate:"required"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *callbackMetadata `json:"CallbackMetadata"`
}

type callbackMetadata struct {
	Item []metadataItem `json:"Item"`
}

// metadataItem values are numbers or strings depending on the item.
type metadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// MpesaCallback handles POST /api/payments/mpesa-callback
//
// Unknown references are still acknowledged so Daraja stops retrying;
// storage failures answer 500 so it retries later.
func (h *Handlers) MpesaCallback(w http.ResponseWriter, r *http.Request) {
	var env stkCallbackEnvelope
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCallbackBody)).Decode(&env); err != nil {
		h.logger.WithError(err).Warn("Undecodable M-Pesa callback")
		writeJSON(w, http.StatusBadRequest, callbackAck{ResultCode: 1, ResultDesc: "Malformed payload"})
		return
	}
	if err := h.validate.Struct(env); err != nil {
		h.logger.WithError(err).Warn("Invalid M-Pesa callback")
		writeJSON(w, http.StatusBadRequest, callbackAck{ResultCode: 1, ResultDesc: "Malformed payload"})
		return
	}

	res := env.Body.StkCallback.toResult()
	log := h.logger.WithFields(logrus.Fields{
		"checkout_request_id": res.TransactionRef,
		"merchant_request_id": env.Body.StkCallback.MerchantRequestID,
		"result_code":         res.ResultCode,
	})

	outcome, err := h.Payments.HandleCallback(r.Context(), res)
	if err != nil {
		log.WithError(err).Error("Failed to process M-Pesa callback")
		writeJSON(w, http.StatusInternalServerError, callbackAck{ResultCode: 1, ResultDesc: "Internal error"})
		return
	}

	log.WithField("outcome", outcome).Info("M-Pesa callback processed")
	writeJSON(w, http.StatusOK, callbackAck{ResultCode: 0, ResultDesc: "Accepted"})
}

func (c *stkCallback) toResult() payment.CallbackResult {
	res := payment.CallbackResult{
		TransactionRef: c.CheckoutRequestID,
		ResultCode:     *c.ResultCode,
		ResultDesc:     c.ResultDesc,
	}
	if c.CallbackMetadata == nil {
		return res
	}
	for _, item := range c.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			res.Receipt = rawString(item.Value)
		case "PhoneNumber":
			res.Phone = rawString(item.Value)
		case "Amount":
			if f, err := strconv.ParseFloat(rawString(item.Value), 64); err == nil {
				res.Amount = int64(math.Round(f))
			}
		}
	}
	return res
}

// rawString returns a JSON string or number as text.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	if bytes.Equal(raw, []byte("null")) {
		return ""
	}
	return string(raw)
}
