package email

import (
	"net/smtp"
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingService(t *testing.T) (*Service, *capturedMail) {
	t.Helper()
	svc := NewService(Config{
		Host:     "smtp.example.com",
		Port:     "587",
		From:     "noreply@example.com",
		FromName: "Resume Builder",
	})
	got := &capturedMail{}
	svc.sendFn = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		got.addr = addr
		got.from = from
		got.to = to
		got.msg = string(msg)
		return nil
	}
	return svc, got
}

func TestSendResumeSharedEmail(t *testing.T) {
	svc, got := newCapturingService(t)

	if err := svc.SendResumeSharedEmail("bob@example.com", "Bob", "alice@example.com", "Alice CV"); err != nil {
		t.Fatalf("SendResumeSharedEmail() error = %v", err)
	}
	if got.addr != "smtp.example.com:587" || got.from != "noreply@example.com" {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	if len(got.to) != 1 || got.to[0] != "bob@example.com" {
		t.Fatalf("recipients = %v", got.to)
	}
	for _, want := range []string{
		"Subject: Resume Shared",
		`From: "Resume Builder" <noreply@example.com>`,
		"Hello Bob, alice@example.com has shared Alice CV with you.",
		"<strong>Alice CV</strong>",
	} {
		if !strings.Contains(got.msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendPortfolioDeployedEmail(t *testing.T) {
	svc, got := newCapturingService(t)

	if err := svc.SendPortfolioDeployedEmail("alice@example.com", "Alice", "https://portfolio-abc.vercel.app"); err != nil {
		t.Fatalf("SendPortfolioDeployedEmail() error = %v", err)
	}
	if !strings.Contains(got.msg, "Subject: Portfolio Website hosted") {
		t.Error("missing subject")
	}
	if !strings.Contains(got.msg, `href="https://portfolio-abc.vercel.app"`) {
		t.Error("missing site link")
	}
}

func TestTemplatesEscapeUserInput(t *testing.T) {
	html, err := renderTemplate(shareEmailTemplate, ShareData{
		AppName:     "Resume Builder",
		UserName:    "<script>alert(1)</script>",
		OwnerEmail:  "alice@example.com",
		ResumeTitle: "CV",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("template should escape user-provided names")
	}
}

func TestSendRequiresConfiguration(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendResumeSharedEmail("bob@example.com", "Bob", "alice@example.com", "CV"); err == nil {
		t.Fatal("expected error when SMTP is not configured")
	}
}
