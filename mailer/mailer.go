package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// email request payload for the ZeptoMail HTTP API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type toRecipient struct {
	Email emailWithName `json:"email_address"`
}

type emailWithName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Mailer sends HTML email through the ZeptoMail HTTP API. With no API URL
// or key configured Send becomes a logged no-op so local setups work
// without credentials.
type Mailer struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
	log    *zerolog.Logger
}

func New(apiURL, apiKey, from string, log *zerolog.Logger) *Mailer {
	return &Mailer{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

func (m *Mailer) Enabled() bool {
	return m.apiURL != "" && m.apiKey != "" && m.from != ""
}

// Send delivers one HTML email.
func (m *Mailer) Send(ctx context.Context, to, toName, subject, htmlBody string) error {
	if !m.Enabled() {
		m.log.Debug().Str("to", to).Msg("mailer not configured, dropping email")
		return nil
	}

	payload := emailRequest{
		From: emailAddress{Address: m.from},
		To: []toRecipient{
			{
				Email: emailWithName{
					Address: to,
					Name:    toName,
				},
			},
		},
		Subject:  subject,
		HtmlBody: htmlBody,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail API error: %s", resp.Status)
	}
	m.log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}
