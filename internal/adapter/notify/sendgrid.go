package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/rl1809/jewel-store/internal/port"
)

type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// EmailNotifier mails alerts to the ops mailbox through SendGrid.
type EmailNotifier struct {
	client mailSender
	from   string
	to     string
}

func NewEmailNotifier(apiKey, from, to string) *EmailNotifier {
	return &EmailNotifier{client: sendgrid.NewSendClient(apiKey), from: from, to: to}
}

func (n *EmailNotifier) Notify(_ context.Context, alert port.Alert) error {
	subject := fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(alert.Severity)), alert.Source, alert.Message)
	body := alertBody(alert)

	message := mail.NewSingleEmail(
		mail.NewEmail("Jewel Store Ops", n.from),
		subject,
		mail.NewEmail("", n.to),
		body,
		fmt.Sprintf("<pre>%s</pre>", body),
	)

	response, err := n.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}
	return nil
}

func alertBody(alert port.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nsource: %s\nseverity: %s\nraised at: %s\n",
		alert.Message, alert.Source, alert.Severity, alert.RaisedAt.Format("2006-01-02 15:04:05 MST"))

	keys := make([]string, 0, len(alert.Fields))
	for k := range alert.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, alert.Fields[k])
	}
	return b.String()
}
