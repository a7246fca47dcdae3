package payment

import (
	"context"
	"errors"
)

// ErrProvider marks failures reported by (or while reaching) the push-payment provider.
var ErrProvider = errors.New("push payment provider error")

// PushRequest asks the provider to prompt the payer's phone.
type PushRequest struct {
	Phone       string
	Amount      int64
	Reference   string
	Description string
}

// PushResult is the provider's acknowledgement of a push request.
type PushResult struct {
	TransactionRef  string
	ProviderMessage string
}

// PushStatus is the provider's view of an earlier push request.
type PushStatus struct {
	Pending    bool // still being processed by the payer or provider
	ResultCode int
	ResultDesc string
}

// Initiator starts push payments. Implementations bound every call with a timeout.
type Initiator interface {
	Initiate(ctx context.Context, req PushRequest) (*PushResult, error)
}

// StatusQuerier asks the provider about an earlier push request.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, transactionRef string) (*PushStatus, error)
}

// Gateway is a provider that can both start and look up push payments.
type Gateway interface {
	Initiator
	StatusQuerier
}

// CallbackResult is the asynchronous outcome of a push payment.
type CallbackResult struct {
	TransactionRef string
	ResultCode     int
	ResultDesc     string
	Receipt        string
	Phone          string
	Amount         int64
}

// Succeeded reports whether the provider result code means the payer was charged.
func (c CallbackResult) Succeeded() bool { return c.ResultCode == 0 }
