package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const twilioDefaultBaseURL = "https://api.twilio.com"

// TwilioClient sends SMS through the Twilio Messages API.
type TwilioClient struct {
	From string
	rest *twilio.RestClient
}

// NewTwilioClient builds a client for accountSID. A baseURL other than the
// public Twilio API redirects every request to that host.
func NewTwilioClient(accountSID, authToken, from, baseURL string) *TwilioClient {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if base, err := url.Parse(baseURL); err == nil && base.Host != "" && baseURL != twilioDefaultBaseURL {
		httpClient.Transport = &hostRewriter{base: base, next: http.DefaultTransport}
	}

	c := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(accountSID, authToken),
		HTTPClient:  httpClient,
	}
	c.SetAccountSid(accountSID)

	return &TwilioClient{
		From: from,
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{Client: c}),
	}
}

// SendSMS ignores ctx cancellation once the request is sent; the SDK has no
// context support, so the HTTP client timeout bounds the call.
func (c *TwilioClient) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.From)
	params.SetBody(body)

	if _, err := c.rest.Api.CreateMessage(params); err != nil {
		var te *twilioclient.TwilioRestError
		if errors.As(err, &te) {
			return fmt.Errorf("twilio error %d: %s", te.Code, te.Message)
		}
		return err
	}
	return nil
}

var _ SMSSender = (*TwilioClient)(nil)

// hostRewriter points SDK requests at another scheme and host, keeping the
// path and query.
type hostRewriter struct {
	base *url.URL
	next http.RoundTripper
}

func (h *hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = h.base.Scheme
	r.URL.Host = h.base.Host
	r.Host = h.base.Host
	return h.next.RoundTrip(r)
}
