package notify

import (
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/wneessen/go-mail"
)

const subject = "Sign in to Procurement System"

var bodyTemplate = htmltemplate.Must(htmltemplate.New("magic-link").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
  <h1>Sign in to Procurement System</h1>
  <p>Hello,</p>
  {{- if .OriginalRecipient}}
  <p><em>Testing mode: this message was meant for {{.OriginalRecipient}}.</em></p>
  {{- end}}
  <p>Click the link below to sign in to your account ({{.Role}}):</p>
  <p><a href="{{.Link}}">Sign In</a></p>
  <p>This link will expire in {{.ExpiresIn}}.</p>
  <p>If you didn't request this, please ignore this email.</p>
</body>
</html>
`))

type templateData struct {
	Link              string
	Role              identity.Role
	ExpiresIn         string
	OriginalRecipient string
}

// Sender is implemented by *mail.Client.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TestingOverride, when set, receives every message instead of the real recipient.
	TestingOverride string
	LinkTTL         time.Duration
}

// SMTPNotifier mails magic links.
type SMTPNotifier struct {
	sender Sender
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(10 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return NewSMTPNotifierWithSender(client, cfg, logger), nil
}

func NewSMTPNotifierWithSender(sender Sender, cfg SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 15 * time.Minute
	}
	return &SMTPNotifier{sender: sender, cfg: cfg, logger: logger}
}

func (n *SMTPNotifier) Send(ctx context.Context, to, link string, role identity.Role) error {
	msg, err := n.BuildMessage(to, link, role)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	return nil
}

// BuildMessage renders the sign-in mail, applying the testing override.
func (n *SMTPNotifier) BuildMessage(to, link string, role identity.Role) (*mail.Msg, error) {
	data := templateData{
		Link:      link,
		Role:      role,
		ExpiresIn: humanDuration(n.cfg.LinkTTL),
	}
	recipient := to
	if n.cfg.TestingOverride != "" {
		recipient = n.cfg.TestingOverride
		data.OriginalRecipient = to
		n.logger.Info("redirecting magic link to testing inbox", "original", to, "override", recipient)
	}

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", n.cfg.From, err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", recipient, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, plainBody(data))
	if err := msg.AddAlternativeHTMLTemplate(bodyTemplate, data); err != nil {
		return nil, fmt.Errorf("render magic link mail: %w", err)
	}
	return msg, nil
}

func plainBody(d templateData) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	if d.OriginalRecipient != "" {
		fmt.Fprintf(&b, "Testing mode: this message was meant for %s.\n\n", d.OriginalRecipient)
	}
	fmt.Fprintf(&b, "Use the link below to sign in to your account (%s):\n%s\n\n", d.Role, d.Link)
	fmt.Fprintf(&b, "This link will expire in %s.\n", d.ExpiresIn)
	b.WriteString("If you didn't request this, please ignore this email.\n")
	return b.String()
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}

// LogNotifier prints links to the log. Used when SMTP is not configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, to, link string, role identity.Role) error {
	n.logger.InfoContext(ctx, "magic link issued", "email", to, "role", role, "link", link)
	return nil
}
