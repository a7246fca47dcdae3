package ussd

import "strings"

// Request is one round trip from the USSD gateway.
type Request struct {
	SessionID   string `validate:"required,max=128"`
	PhoneNumber string `validate:"required,max=20"`
	ServiceCode string `validate:"max=32"`
	Text        string `validate:"max=512"` // star-joined history, empty on the first step
}

// Tokens splits the input history. An empty text has no tokens.
func (r Request) Tokens() []string {
	if r.Text == "" {
		return nil
	}
	return strings.Split(r.Text, "*")
}

// Reply is the text returned to the gateway.
type Reply struct {
	Text string
	End  bool
}

// Continue keeps the dialog open.
func Continue(text string) Reply { return Reply{Text: text} }

// End closes the dialog.
func End(text string) Reply { return Reply{Text: text, End: true} }

// String renders the reply with the gateway's CON/END marker.
func (r Reply) String() string {
	if r.End {
		return "END " + r.Text
	}
	return "CON " + r.Text
}

// ParseReply is the inverse of Reply.String.
func ParseReply(s string) Reply {
	if rest, ok := strings.CutPrefix(s, "END "); ok {
		return End(rest)
	}
	return Continue(strings.TrimPrefix(s, "CON "))
}
