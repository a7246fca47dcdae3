package httpapi

import (
	"net/http"

	"rentara/internal/domain/ussd"
)

// USSDStep handles POST /api/ussd
//
// The gateway posts form fields sessionId, phoneNumber, serviceCode and text
// and expects a plain-text body starting with CON or END.
func (h *Handlers) USSDStep(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.WithError(err).Warn("Malformed USSD request body")
		writeUSSD(w, ussd.End("Invalid request."))
		return
	}
	req := ussd.Request{
		SessionID:   r.PostFormValue("sessionId"),
		PhoneNumber: r.PostFormValue("phoneNumber"),
		ServiceCode: r.PostFormValue("serviceCode"),
		Text:        r.PostFormValue("text"),
	}
	if err := h.validate.Struct(req); err != nil {
		h.logger.WithError(err).WithField("session_id", req.SessionID).Warn("Invalid USSD request")
		writeUSSD(w, ussd.End("Invalid request."))
		return
	}

	writeUSSD(w, h.USSD.Handle(r.Context(), req))
}

func writeUSSD(w http.ResponseWriter, reply ussd.Reply) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(reply.String()))
}
