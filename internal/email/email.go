package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"net/smtp"

	"github.com/google/uuid"

	"github.com/wavelane/backend/internal/notifications"
	"github.com/wavelane/backend/pkg/config"
)

var digestTemplate = template.Must(template.New("digest").Parse(`
<html>
	<body>
		<h2>Hi {{.Name}},</h2>
		<p>Here's what you missed:</p>
		<ul>
		{{range .Items}}
			<li>{{.Message}} <em>{{.Timestamp.Format "Jan 2, 3:04 PM"}}</em></li>
		{{end}}
		</ul>
		<p>Open the app to see everything.</p>
	</body>
</html>
`))

// Sender delivers digest emails over SMTP.
type Sender struct {
	config *config.Config
}

// NewSender creates an SMTP digest sender.
func NewSender(cfg *config.Config) *Sender {
	return &Sender{config: cfg}
}

// SendDigest renders and sends one user's digest. With no SMTP credentials
// configured it logs and returns ErrEmailNotConfigured, which keeps
// development environments from needing a mail server while leaving the
// digest pending.
func (s *Sender) SendDigest(ctx context.Context, data notifications.DigestData) error {
	var body bytes.Buffer
	if err := digestTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	if s.config.SMTPEmail == "" || s.config.SMTPPassword == "" {
		log.Printf("email: SMTP credentials not set, skipping digest to %s (%d items)", data.Email, len(data.Items))
		return notifications.ErrEmailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := s.config.SMTPEmail
	host := s.config.SMTPHost
	address := host + ":" + s.config.SMTPPort

	subject := fmt.Sprintf("Subject: Your %s notification digest\n", data.Frequency)
	messageID := fmt.Sprintf("Message-ID: <%s@%s>\n", uuid.NewString(), host)
	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	message := []byte(subject + messageID + mime + body.String())

	auth := smtp.PlainAuth("", from, s.config.SMTPPassword, host)
	if err := smtp.SendMail(address, auth, from, []string{data.Email}, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
