package zoho

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpclient "robohire-billing/internal/common/http"
)

const DefaultBaseURL = "https://www.zohoapis.com/crm/v3"

type CRMClient struct {
	apiKey     string
	oauthToken string
	baseURL    string
	httpClient *httpclient.Client
}

// Contact is a paying RoboHire customer as stored in Zoho.
type Contact struct {
	ID                 string `json:"id,omitempty"`
	Email              string `json:"Email"`
	FirstName          string `json:"First_Name,omitempty"`
	LastName           string `json:"Last_Name"`
	AccountName        string `json:"Account_Name,omitempty"`
	Source             string `json:"Lead_Source,omitempty"`
	SubscriptionTier   string `json:"Subscription_Tier,omitempty"`
	SubscriptionStatus string `json:"Subscription_Status,omitempty"`
	StripeCustomerID   string `json:"Stripe_Customer_ID,omitempty"`
}

type writeResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewCRMClient(apiKey, oauthToken string) *CRMClient {
	return &CRMClient{
		apiKey:     apiKey,
		oauthToken: oauthToken,
		baseURL:    DefaultBaseURL,
		httpClient: httpclient.NewClient(30 * time.Second),
	}
}

// WithBaseURL points the client at another data center or a test server.
func (c *CRMClient) WithBaseURL(baseURL string) *CRMClient {
	if baseURL != "" {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
	return c
}

func (c *CRMClient) headers() map[string]string {
	return map[string]string{"Authorization": "Zoho-oauthtoken " + c.oauthToken}
}

func (c *CRMClient) CreateContact(ctx context.Context, contact *Contact) (string, error) {
	var resp writeResponse
	payload := map[string]interface{}{"data": []Contact{*contact}}
	if _, err := c.httpClient.DoJSON(ctx, http.MethodPost, c.baseURL+"/Contacts", c.headers(), payload, &resp); err != nil {
		return "", fmt.Errorf("create contact: %w", err)
	}
	return resp.firstID("create contact")
}

func (c *CRMClient) UpdateContact(ctx context.Context, contactID string, contact *Contact) error {
	update := *contact
	update.ID = ""
	var resp writeResponse
	payload := map[string]interface{}{"data": []Contact{update}}
	endpoint := fmt.Sprintf("%s/Contacts/%s", c.baseURL, url.PathEscape(contactID))
	if _, err := c.httpClient.DoJSON(ctx, http.MethodPut, endpoint, c.headers(), payload, &resp); err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	_, err := resp.firstID("update contact")
	return err
}

// SearchContacts finds contacts by email. Zoho answers 204 when nothing matches.
func (c *CRMClient) SearchContacts(ctx context.Context, email string) ([]Contact, error) {
	endpoint := fmt.Sprintf("%s/Contacts/search?email=%s", c.baseURL, url.QueryEscape(email))

	var result struct {
		Data []Contact `json:"data"`
	}
	if _, err := c.httpClient.DoJSON(ctx, http.MethodGet, endpoint, c.headers(), nil, &result); err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return result.Data, nil
}

func (r *writeResponse) firstID(op string) (string, error) {
	if len(r.Data) == 0 {
		return "", fmt.Errorf("%s: no data in response", op)
	}
	if r.Data[0].Status != "success" {
		return "", fmt.Errorf("%s: %s (%s)", op, r.Data[0].Message, r.Data[0].Code)
	}
	return r.Data[0].Details.ID, nil
}
