package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const apiVersion = "v9.2"

var (
	// ErrNotFound indicates no contact matched the query.
	ErrNotFound = errors.New("contact not found")
	// ErrNotConfigured indicates the CRM connection settings are incomplete.
	ErrNotConfigured = errors.New("crm not configured")
)

// Config holds the Dataverse Web API connection settings. EmailField and
// PasswordField name the contact attributes used for login; RoleFields lists
// the boolean role flag attributes in priority order.
type Config struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	TenantID      string
	EmailField    string
	PasswordField string
	RoleFields    []string
}

// Contact is a person record in the CRM, doubling as this application's user
// identity. Flags carries the raw role booleans keyed by attribute name.
type Contact struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	Password      string
	AccountID     string
	AccountName   string
	AccountNumber string
	Flags         map[string]bool
}

// Client talks to the Dataverse Web API using client-credentials tokens.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New builds a Client. The underlying HTTP client obtains and refreshes
// service tokens via the tenant's OAuth2 client-credentials grant.
func New(cfg Config) *Client {
	c := &Client{cfg: cfg}
	if c.Configured() {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
			Scopes:       []string{strings.TrimRight(cfg.BaseURL, "/") + "/.default"},
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		c.httpClient = cc.Client(context.Background())
	}
	return c
}

// NewWithHTTPClient builds a Client with an injected HTTP client. Used by tests
// and by deployments fronting the Web API with their own auth.
func NewWithHTTPClient(cfg Config, httpClient *http.Client) *Client {
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Configured reports whether all connection settings are present.
func (c *Client) Configured() bool {
	return c != nil &&
		c.cfg.BaseURL != "" && c.cfg.ClientID != "" &&
		c.cfg.ClientSecret != "" && c.cfg.TenantID != ""
}

// GetContactByEmail returns the first contact whose email attribute matches.
func (c *Client) GetContactByEmail(ctx context.Context, email string) (Contact, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("%s eq '%s'", c.emailField(), escapeOData(email)))
	params.Set("$select", c.selectFields())
	params.Set("$expand", accountExpand)
	params.Set("$top", "1")

	list, err := c.queryContacts(ctx, params)
	if err != nil {
		return Contact{}, err
	}
	if len(list) == 0 {
		return Contact{}, ErrNotFound
	}
	return list[0], nil
}

// GetContactByID fetches a single contact by its id.
func (c *Client) GetContactByID(ctx context.Context, contactID string) (Contact, error) {
	params := url.Values{}
	params.Set("$select", c.selectFields())
	params.Set("$expand", accountExpand)

	endpoint := fmt.Sprintf("%s/api/data/%s/contacts(%s)?%s", c.baseURL(), apiVersion, url.PathEscape(contactID), params.Encode())
	raw, err := c.getJSON(ctx, endpoint)
	if err != nil {
		return Contact{}, err
	}
	return c.contactFromRaw(raw), nil
}

// ListContactsByAccount returns all contacts under the given account,
// ordered by last then first name.
func (c *Client) ListContactsByAccount(ctx context.Context, accountID string) ([]Contact, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("_parentcustomerid_value eq '%s'", escapeOData(accountID)))
	params.Set("$select", c.selectFields())
	params.Set("$expand", accountExpand)
	params.Set("$orderby", "lastname,firstname")

	return c.queryContacts(ctx, params)
}

// UpdatePassword stores a credential value on the contact's password attribute.
func (c *Client) UpdatePassword(ctx context.Context, contactID, credential string) error {
	return c.patchContact(ctx, contactID, map[string]any{c.passwordField(): credential})
}

// UpdateRoleFlags patches role boolean attributes. Attributes outside the
// configured role fields are dropped, not forwarded.
func (c *Client) UpdateRoleFlags(ctx context.Context, contactID string, flags map[string]bool) error {
	allowed := make(map[string]struct{}, len(c.cfg.RoleFields))
	for _, f := range c.cfg.RoleFields {
		allowed[f] = struct{}{}
	}
	payload := make(map[string]any)
	for key, val := range flags {
		if _, ok := allowed[key]; ok {
			payload[key] = val
		}
	}
	if len(payload) == 0 {
		return nil
	}
	return c.patchContact(ctx, contactID, payload)
}

// RoleFields returns the configured role flag attribute names.
func (c *Client) RoleFields() []string {
	return c.cfg.RoleFields
}

const accountExpand = "parentcustomerid_account($select=name,accountnumber,accountid)"

func (c *Client) queryContacts(ctx context.Context, params url.Values) ([]Contact, error) {
	endpoint := fmt.Sprintf("%s/api/data/%s/contacts?%s", c.baseURL(), apiVersion, params.Encode())

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("crm query", resp)
	}

	var body struct {
		Value []map[string]any `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("crm query decode: %w", err)
	}

	out := make([]Contact, 0, len(body.Value))
	for _, raw := range body.Value {
		out = append(out, c.contactFromRaw(raw))
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string) (map[string]any, error) {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("crm get", resp)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("crm get decode: %w", err)
	}
	return raw, nil
}

func (c *Client) patchContact(ctx context.Context, contactID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/api/data/%s/contacts(%s)", c.baseURL(), apiVersion, url.PathEscape(contactID))
	req, err := c.newRequest(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("crm patch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("crm patch", resp)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	if !c.configuredOrInjected() {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) contactFromRaw(raw map[string]any) Contact {
	contact := Contact{
		ID:        stringField(raw, "contactid"),
		Email:     stringField(raw, c.emailField()),
		FirstName: stringField(raw, "firstname"),
		LastName:  stringField(raw, "lastname"),
		Password:  stringField(raw, c.passwordField()),
		AccountID: stringField(raw, "_parentcustomerid_value"),
		Flags:     make(map[string]bool, len(c.cfg.RoleFields)),
	}

	if account, ok := raw["parentcustomerid_account"].(map[string]any); ok {
		contact.AccountName = stringField(account, "name")
		contact.AccountNumber = stringField(account, "accountnumber")
		if contact.AccountID == "" {
			contact.AccountID = stringField(account, "accountid")
		}
	}

	for _, field := range c.cfg.RoleFields {
		contact.Flags[field] = truthy(raw[field])
	}
	return contact
}

func (c *Client) selectFields() string {
	fields := []string{"contactid", c.emailField(), c.passwordField(), "firstname", "lastname", "_parentcustomerid_value"}
	fields = append(fields, c.cfg.RoleFields...)
	return strings.Join(fields, ",")
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.cfg.BaseURL, "/")
}

func (c *Client) emailField() string {
	if c.cfg.EmailField == "" {
		return "emailaddress1"
	}
	return c.cfg.EmailField
}

func (c *Client) passwordField() string {
	if c.cfg.PasswordField == "" {
		return "crb3d_sdspassword"
	}
	return c.cfg.PasswordField
}

func (c *Client) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

func (c *Client) configuredOrInjected() bool {
	return c.Configured() || (c.httpClient != nil && c.cfg.BaseURL != "")
}

// escapeOData doubles single quotes so user input cannot break out of an
// OData string literal.
func escapeOData(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func statusError(op string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: status %d %s", op, resp.StatusCode, strings.TrimSpace(string(detail)))
}

func stringField(raw map[string]any, key string) string {
	if key == "" {
		return ""
	}
	if val, ok := raw[key]; ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", val)
	}
	return ""
}

// truthy mirrors the loose boolean semantics of the Web API, which may return
// booleans, strings, or numbers for customized attributes.
func truthy(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	case float64:
		return v == 1
	default:
		return false
	}
}
