package siteauth

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/resend/resend-go/v2"
)

// SendEmail interface allows applications to provide their own email sending implementation
type SendEmail interface {
	SendSignInLink(ctx context.Context, to string, link string, expiresIn time.Duration) error
}

// ConsoleEmailSender is a development implementation that logs emails to console
type ConsoleEmailSender struct{}

func (c *ConsoleEmailSender) SendSignInLink(ctx context.Context, to string, link string, expiresIn time.Duration) error {
	log.Printf("\n=== EMAIL: Sign in ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Sign in to %s", siteName)
	log.Printf("Body: Sign in by clicking (valid for %s): %s", expiresIn, link)
	log.Printf("======================\n")
	return nil
}

// ResendEmailSender delivers sign-in links through the Resend API
type ResendEmailSender struct {
	From   string
	client *resend.Client
}

// NewResendEmailSender needs the API key and a verified sender address
func NewResendEmailSender(apiKey, from string) (*ResendEmailSender, error) {
	if apiKey == "" || from == "" {
		return nil, fmt.Errorf("resend: api key and sender address are required")
	}
	return &ResendEmailSender{From: from, client: resend.NewClient(apiKey)}, nil
}

func (s *ResendEmailSender) SendSignInLink(ctx context.Context, to string, link string, expiresIn time.Duration) error {
	html, err := renderSignInEmail(link, expiresIn)
	if err != nil {
		return fmt.Errorf("build email body: %w", err)
	}
	params := &resend.SendEmailRequest{
		From:    s.From,
		To:      []string{to},
		Subject: fmt.Sprintf("Sign in to %s", siteName),
		Html:    html,
		Text:    fmt.Sprintf("Sign in to %s\n\n%s\n\nThis link expires in %s. If you did not request this email you can safely ignore it.\n", siteName, link, expiresIn),
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}

const siteName = "RepairLoader"

var signInEmailTemplate = template.Must(template.New("signin").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; background-color: #f8fafc; padding: 40px 20px;">
  <div style="max-width: 480px; margin: 0 auto; background: #ffffff; border-radius: 16px; padding: 40px; text-align: center;">
    <h1 style="font-size: 24px; color: #1e293b;">Sign in to {{.Site}}</h1>
    <p style="color: #64748b;">This link expires in <strong>{{.ExpiresIn}}</strong>.</p>
    <p><a href="{{.Link}}" style="display: inline-block; padding: 14px 32px; background: #3b82f6; color: #ffffff; text-decoration: none; border-radius: 12px;">Sign in</a></p>
    <p style="font-size: 12px; color: #94a3b8;">If you did not request this email you can safely ignore it.</p>
  </div>
</body>
</html>`))

func renderSignInEmail(link string, expiresIn time.Duration) (string, error) {
	var buf bytes.Buffer
	err := signInEmailTemplate.Execute(&buf, map[string]any{
		"Site":      siteName,
		"Link":      link,
		"ExpiresIn": expiresIn.String(),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
