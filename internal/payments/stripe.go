// Package payments wraps the hosted-checkout provider behind the two calls
// the order workflow needs: create a session, verify a webhook.
package payments

import (
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

type Client struct {
	webhookSecret string
}

func New(secretKey, webhookSecret string) *Client {
	stripe.Key = secretKey
	return &Client{webhookSecret: webhookSecret}
}

// SessionRequest describes one hosted checkout session. Metadata travels
// opaquely through the provider and comes back on the completion event.
type SessionRequest struct {
	AmountCents       int64
	Currency          string
	CustomerEmail     string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	ItemName          string
	Metadata          map[string]string
}

// CreateCheckoutSession requests a hosted payment page and returns its
// redirect URL. No order is created and no inventory moves here.
func (c *Client) CreateCheckoutSession(req SessionRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		CustomerEmail:     stripe.String(req.CustomerEmail),
		ClientReferenceID: stripe.String(req.ClientReferenceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.ItemName),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	s, err := session.New(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

// VerifyWebhook authenticates a raw webhook payload against the shared
// signing secret. Nothing is processed when verification fails.
func (c *Client) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, c.webhookSecret)
}
