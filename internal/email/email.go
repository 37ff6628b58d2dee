package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/Domenick1991/staybooking/internal/kafka"
	"github.com/resend/resend-go/v2"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Transport delivers a rendered message.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

const confirmationSubject = "We received your booking"

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`# Booking received

Hi {{.FirstName}},

we have received your booking **#{{.BookingID}}** for a **{{.RoomType}}**.

- Arrival: {{.ArrivalDate}}
- Departure: {{.DepartureDate}}

We will be in touch before your arrival.
`))

// Raw HTML in the template output is escaped since WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

type Sender struct {
	transport Transport
}

func NewSender(transport Transport) *Sender {
	return &Sender{transport: transport}
}

// Send renders the confirmation for a booking_created event and delivers it.
// Other event types are ignored.
func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if event.Type != kafka.EventBookingCreated {
		return nil
	}
	if event.Email == "" {
		return fmt.Errorf("booking %d has no recipient", event.BookingID)
	}

	html, err := RenderConfirmation(event)
	if err != nil {
		return err
	}
	return s.transport.Deliver(ctx, Message{
		To:      []string{event.Email},
		Subject: confirmationSubject,
		HTML:    html,
	})
}

func RenderConfirmation(event kafka.BookingEvent) (string, error) {
	var md bytes.Buffer
	if err := confirmationTemplate.Execute(&md, event); err != nil {
		return "", fmt.Errorf("render confirmation markdown: %w", err)
	}
	var out bytes.Buffer
	if err := mdRenderer.Convert(md.Bytes(), &out); err != nil {
		return "", fmt.Errorf("render confirmation html: %w", err)
	}
	return out.String(), nil
}

// ResendTransport sends messages via the Resend API.
type ResendTransport struct {
	client *resend.Client
	from   string
}

func NewResendTransport(apiKey, from string) *ResendTransport {
	return &ResendTransport{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (t *ResendTransport) Deliver(ctx context.Context, msg Message) error {
	sent, err := t.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    t.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	slog.Info("resend_sent", "message_id", sent.Id, "subject", msg.Subject)
	return nil
}

// LogTransport only logs that a message would have been sent.
type LogTransport struct{}

func (LogTransport) Deliver(_ context.Context, msg Message) error {
	slog.Info("email_skipped", "subject", msg.Subject, "recipients", len(msg.To), "bytes", len(msg.HTML))
	return nil
}
