package email

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/lancerhub/marketplace/libs/events"
)

// Message is a rendered email for one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

type templateData struct {
	Recipient   events.Recipient
	Booking     events.Booking
	BannedUntil string
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[string]messageTemplate{
	events.BookingCreated: mustTemplate(events.BookingCreated,
		"New booking for {{.Booking.Date}} at {{.Booking.Time}}",
		`Hi {{.Recipient.Name}},

A booking{{with .Booking.ServiceName}} for {{.}}{{end}} between {{.Booking.ClientName}} and {{.Booking.ProviderName}} was requested for {{.Booking.Date}} at {{.Booking.Time}} ({{.Booking.DurationMinutes}} minutes).
It is pending until the provider confirms it.`),
	events.BookingConfirmed: mustTemplate(events.BookingConfirmed,
		"Your booking on {{.Booking.Date}} is confirmed",
		`Hi {{.Recipient.Name}},

{{.Booking.ProviderName}} confirmed your booking on {{.Booking.Date}} at {{.Booking.Time}}.`),
	events.BookingRejected: mustTemplate(events.BookingRejected,
		"Your booking on {{.Booking.Date}} was declined",
		`Hi {{.Recipient.Name}},

{{.Booking.ProviderName}} declined your booking request for {{.Booking.Date}} at {{.Booking.Time}}.`),
	events.BookingCancelled: mustTemplate(events.BookingCancelled,
		"Booking on {{.Booking.Date}} was cancelled",
		`Hi {{.Recipient.Name}},

The booking between {{.Booking.ClientName}} and {{.Booking.ProviderName}} on {{.Booking.Date}} at {{.Booking.Time}} was cancelled.`),
	events.BookingCompleted: mustTemplate(events.BookingCompleted,
		"Booking on {{.Booking.Date}} completed",
		`Hi {{.Recipient.Name}},

Your session with {{.Booking.ProviderName}} on {{.Booking.Date}} is marked as completed.`),
	events.UserSuspended: mustTemplate(events.UserSuspended,
		"Your account is suspended until {{.BannedUntil}}",
		`Hi {{.Recipient.Name}},

Your account reached the limit of late cancellations and cannot make new bookings until {{.BannedUntil}}.`),
}

func mustTemplate(name, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=error").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Option("missingkey=error").Parse(body)),
	}
}

// Render builds the message for one recipient of n.
func Render(n events.BookingNotification, to events.Recipient) (Message, error) {
	tmpl, ok := templates[n.EventType]
	if !ok {
		return Message{}, fmt.Errorf("no template for event type %q", n.EventType)
	}
	if strings.TrimSpace(to.Email) == "" {
		return Message{}, fmt.Errorf("recipient %s has no email", to.UserID)
	}

	data := templateData{Recipient: to, Booking: n.Booking}
	if data.Recipient.Name == "" {
		data.Recipient.Name = "there"
	}
	if n.BannedUntil != nil {
		data.BannedUntil = n.BannedUntil.UTC().Format(time.RFC1123)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}
	return Message{To: to.Email, Subject: subject.String(), Body: body.String()}, nil
}
