package adapter

import "context"

// CheckoutParams carries everything the provider needs to start a
// subscription checkout. ClientReferenceID is the correlation identifier the
// provider echoes back in the completed-checkout event; it is how the
// asynchronous event is matched to the initiating user.
type CheckoutParams struct {
	PriceID           string
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
}

// CheckoutSession is the opaque redirect handle returned by the provider.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutGateway is the hex port for the payment provider's session APIs.
type CheckoutGateway interface {
	Name() string
	CreateSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	// CreatePortalSession returns a billing-portal URL for an existing
	// provider customer.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}
