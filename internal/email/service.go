// Package email sends notification mail over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	sendFn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		sendFn: smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%q <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

// SendHTMLEmail sends an HTML email with a plain text alternative.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody, textBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("email: no recipients")
	}

	boundary := "boundary-resumebuilder"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.sendFn(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type ShareData struct {
	AppName     string
	UserName    string
	OwnerEmail  string
	ResumeTitle string
}

type DeploymentData struct {
	AppName  string
	UserName string
	SiteURL  string
}

// SendResumeSharedEmail tells a collaborator a resume was shared with them.
func (s *Service) SendResumeSharedEmail(to, userName, ownerEmail, resumeTitle string) error {
	data := ShareData{
		AppName:     "Resume Builder",
		UserName:    userName,
		OwnerEmail:  ownerEmail,
		ResumeTitle: resumeTitle,
	}

	html, err := renderTemplate(shareEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render share template: %w", err)
	}
	text := fmt.Sprintf("Hello %s, %s has shared %s with you. Please check it. Thank you", userName, ownerEmail, resumeTitle)
	return s.SendHTMLEmail([]string{to}, "Resume Shared", html, text)
}

// SendPortfolioDeployedEmail sends the owner the address of their site.
func (s *Service) SendPortfolioDeployedEmail(to, userName, siteURL string) error {
	data := DeploymentData{
		AppName:  "Resume Builder",
		UserName: userName,
		SiteURL:  siteURL,
	}

	html, err := renderTemplate(deploymentEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render deployment template: %w", err)
	}
	text := fmt.Sprintf("Hello %s, your portfolio website is deployed on the link: %s. Please do check it. Thank you.", userName, siteURL)
	return s.SendHTMLEmail([]string{to}, "Portfolio Website hosted", html, text)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const shareEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>A resume was shared with you</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>Hello {{.UserName}},</p>

    <p><strong>{{.OwnerEmail}}</strong> has shared <strong>{{.ResumeTitle}}</strong> with you. You can open it from your resume list and edit it together in real time.</p>

    <div class="footer">
        <p>You received this email because someone shared a resume with this address on {{.AppName}}.</p>
    </div>
</body>
</html>`

const deploymentEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your portfolio is live</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .link { word-break: break-all; color: #0066cc; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>Hello {{.UserName}},</p>

    <p>Your portfolio website has been deployed.</p>

    <p>
        <a href="{{.SiteURL}}" class="button">Open Portfolio</a>
    </p>

    <p class="link">{{.SiteURL}}</p>
</body>
</html>`
