package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"sds-backend/internal/crm"
	"sds-backend/internal/shared/server/respond"
	"sds-backend/internal/shared/telemetry"
)

const graphMeURL = "https://graph.microsoft.com/v1.0/me"

// MicrosoftService handles the Microsoft OAuth login flow. A successful
// callback still requires a matching CRM contact; the identity provider only
// proves the email.
type MicrosoftService struct {
	oauthConfig *oauth2.Config
	auth        *Service
	uiRedirect  string
	stateStore  *stateStore

	// profileURL is swapped out by tests.
	profileURL string
}

// NewMicrosoftService builds a MicrosoftService. States expire after ten
// minutes.
func NewMicrosoftService(clientID, clientSecret, tenantID, redirectURL, uiRedirect string, svc *Service) *MicrosoftService {
	if tenantID == "" {
		tenantID = "common"
	}
	return &MicrosoftService{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email", "User.Read"},
			Endpoint:     microsoft.AzureADEndpoint(tenantID),
		},
		auth:       svc,
		uiRedirect: uiRedirect,
		stateStore: newStateStore(10 * time.Minute),
		profileURL: graphMeURL,
	}
}

// RegisterRoutes attaches the OAuth routes to a public router group.
func (s *MicrosoftService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/microsoft/start", s.start)
	rg.GET("/auth/microsoft/callback", s.callback)
}

func (s *MicrosoftService) start(c *gin.Context) {
	if s.oauthConfig.ClientID == "" || s.oauthConfig.ClientSecret == "" || s.oauthConfig.RedirectURL == "" {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Microsoft auth not configured", nil)
		return
	}

	state := uuid.NewString()
	s.stateStore.put(state)

	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state))
}

func (s *MicrosoftService) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		s.redirectError(c, "invalid_request", "missing state or code")
		return
	}

	if !s.stateStore.consume(state) {
		s.redirectError(c, "invalid_request", "invalid or expired state")
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		s.redirectError(c, "auth_failed", "failed to exchange code")
		return
	}

	email, err := s.fetchEmail(ctx, token)
	if err != nil || email == "" {
		s.redirectError(c, "auth_failed", "failed to fetch user profile")
		return
	}

	contact, err := s.auth.CRM.GetContactByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			s.redirectError(c, "no_account", "No account exists for this email")
			return
		}
		telemetry.Error("auth.microsoft_crm_lookup", map[string]any{"error": err.Error()})
		s.redirectError(c, "auth_failed", "account lookup failed")
		return
	}

	jwt, _, err := s.auth.issueSession(contact)
	if err != nil {
		s.redirectError(c, "auth_failed", "failed to issue token")
		return
	}

	redirectURL, err := appendQuery(s.uiRedirect, map[string]string{"token": jwt})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}
	c.Redirect(http.StatusFound, redirectURL)
}

type graphProfile struct {
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// fetchEmail reads the signed-in user's profile from Microsoft Graph. Personal
// accounts often have no mail attribute, so the principal name is the
// fallback.
func (s *MicrosoftService) fetchEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get(s.profileURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("graph profile status %d", resp.StatusCode)
	}

	var profile graphProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", err
	}
	if profile.Mail != "" {
		return profile.Mail, nil
	}
	return profile.UserPrincipalName, nil
}

func (s *MicrosoftService) redirectError(c *gin.Context, code, message string) {
	redirectURL, err := appendQuery(s.uiRedirect, map[string]string{"error": code, "message": message})
	if err != nil {
		respond.Error(c, http.StatusBadRequest, code, message, nil)
		return
	}
	c.Redirect(http.StatusFound, redirectURL)
}

func appendQuery(rawURL string, params map[string]string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for key, val := range params {
		q.Set(key, val)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
