package notification

import (
	"text/template"

	"github.com/jwalitptl/vip-booking/internal/model"
)

type recipient int

const (
	toClient recipient = iota
	toAdmin
)

type notice struct {
	to      recipient
	subject *template.Template
	body    *template.Template
}

func mustNotice(to recipient, name, subject, body string) notice {
	return notice{
		to:      to,
		subject: template.Must(template.New(name + ".subject").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Parse(body)),
	}
}

const signature = `

{{.Agent}}`

// notices lists what is sent for each event type.
var notices = map[string][]notice{
	model.EventAppointmentRequested: {
		mustNotice(toClient, "requested-client",
			"We received your appointment request",
			`Hello {{.ClientName}},

your request for {{.Date}} {{.StartTime}}-{{.EndTime}} ({{.Modality}}) is registered.
{{if eq .PaymentStatus "unpaid"}}Please complete the payment of {{.Price}} to send it for review.{{else}}This first appointment is free and is now awaiting our confirmation.{{end}}`+signature),
		mustNotice(toAdmin, "requested-admin",
			"New appointment request {{.AppointmentID}}",
			`Client {{.ClientID}} requested {{.Date}} {{.StartTime}}-{{.EndTime}} ({{.Modality}}), payment {{.PaymentStatus}}.`),
	},
	model.EventPaymentRecorded: {
		mustNotice(toClient, "paid-client",
			"Payment received",
			`Hello {{.ClientName}},

we received your payment for the appointment on {{.Date}} at {{.StartTime}}. We will confirm it shortly.`+signature),
		mustNotice(toAdmin, "paid-admin",
			"Appointment {{.AppointmentID}} is ready for review",
			`Payment recorded for client {{.ClientID}}, {{.Date}} {{.StartTime}}-{{.EndTime}}.`),
	},
	model.EventAppointmentConfirmed: {
		mustNotice(toClient, "confirmed-client",
			"Your appointment is confirmed",
			`Hello {{.ClientName}},

your appointment on {{.Date}} from {{.StartTime}} to {{.EndTime}} is confirmed.
{{with .Location}}Location: {{.}}
{{end}}{{with .Response}}{{.}}
{{end}}`+signature),
	},
	model.EventAppointmentCancelled: {
		mustNotice(toClient, "cancelled-client",
			"Your appointment was cancelled",
			`Hello {{.ClientName}},

the appointment on {{.Date}} at {{.StartTime}} was cancelled.{{with .Reason}} Reason: {{.}}.{{end}}
{{if eq .PaymentStatus "refunded"}}Your payment will be refunded.{{end}}`+signature),
		mustNotice(toAdmin, "cancelled-admin",
			"Appointment {{.AppointmentID}} cancelled",
			`Client {{.ClientID}}, {{.Date}} {{.StartTime}}.{{with .Reason}} Reason: {{.}}.{{end}}`),
	},
	model.EventAlternativeProposed: {
		mustNotice(toClient, "proposed-client",
			"We propose another time for your appointment",
			`Hello {{.ClientName}},

{{.Response}}
Please accept or decline the new time in your client area.`+signature),
	},
	model.EventAlternativeAccepted: {
		mustNotice(toClient, "accepted-client",
			"Your appointment is confirmed",
			`Hello {{.ClientName}},

you accepted the new time. Your appointment on {{.Date}} from {{.StartTime}} to {{.EndTime}} is confirmed.
{{with .Location}}Location: {{.}}
{{end}}`+signature),
		mustNotice(toAdmin, "accepted-admin",
			"Client accepted alternative for {{.AppointmentID}}",
			`Client {{.ClientID}} accepted {{.Date}} {{.StartTime}}-{{.EndTime}}.`),
	},
	model.EventAlternativeRejected: {
		mustNotice(toAdmin, "declined-admin",
			"Client declined alternative for {{.AppointmentID}}",
			`Client {{.ClientID}} declined the proposed slot.`),
	},
	model.EventAppointmentCompleted: {
		mustNotice(toClient, "completed-client",
			"Thank you for your visit",
			`Hello {{.ClientName}},

thank you for meeting us on {{.Date}}. We will be in touch about the next steps.`+signature),
	},
}
