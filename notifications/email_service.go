package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	config "github.com/anjiri1684/zukih_store/configs"
	"github.com/sirupsen/logrus"
)

const brevoSendURL = "https://api.brevo.com/v3/smtp/email"

// BrevoService sends transactional mail through the Brevo HTTP API.
type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string

	endpoint   string
	httpClient *http.Client
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewEmailService returns nil when Brevo is not configured; a nil *BrevoService drops mail.
func NewEmailService() *BrevoService {
	apiKey := config.Config("BREVO_API_KEY")
	senderEmail := config.Config("EMAIL_SENDER")
	senderName := config.ConfigDefault("EMAIL_SENDER_NAME", "Zukih Store")

	if apiKey == "" || senderEmail == "" {
		logrus.Warn("⚠️ Email service not configured. Missing BREVO_API_KEY or EMAIL_SENDER.")
		return nil
	}

	logrus.WithField("sender", senderEmail).Info("✅ Email service initialized successfully.")
	return NewBrevoService(apiKey, senderEmail, senderName, brevoSendURL)
}

func NewBrevoService(apiKey, senderEmail, senderName, endpoint string) *BrevoService {
	return &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *BrevoService) send(toEmail, toName, subject, htmlContent string) error {
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("brevo returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// SendEmail is fire-and-forget: failures are logged, never returned.
func (s *BrevoService) SendEmail(toName, toEmail, subject, htmlContent string) {
	if s == nil {
		logrus.Debug("Email client not initialized, skipping email send.")
		return
	}

	if err := s.send(toEmail, toName, subject, htmlContent); err != nil {
		logrus.WithError(err).WithField("to", toEmail).Error("🔥 Failed to send email")
		return
	}
	logrus.WithField("to", toEmail).Info("✅ Email sent successfully")
}
