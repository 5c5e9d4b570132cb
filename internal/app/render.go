package app

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/Cxsmxnaut/subwatch/internal/domain"
)

const reminderDateLayout = "Jan 2, 2006"

var reminderTemplate = template.Must(template.New("reminder").Parse(`<p>Hey {{.DisplayName}},</p>

<p>Quick heads-up: your <strong>{{.Name}}</strong> subscription renews in <strong>{{.Days}}</strong>.</p>

<p><strong>Details</strong><br>
&bull; Price: <strong>${{.Price}} / {{.BillingCycle}}</strong><br>
&bull; Renewal date: <strong>{{.RenewalDate}}</strong></p>
{{if .CancelURL}}
<p>If you still use it, you're good.<br>
If not, you can cancel here before the charge hits:</p>

<p><strong><a href="{{.CancelURL}}" style="color: #dc2626; text-decoration: none;">Cancel subscription</a></strong></p>
{{end}}
<hr style="margin: 20px 0; border: none; border-top: 1px solid #e5e7eb;">

<p><em>SubWatch exists for one reason: no surprise charges.</em></p>

<p>SubWatch<br>
<small>Track subscriptions. Keep your money.</small></p>
`))

type reminderMessage struct {
	Subject string
	HTML    string
}

type reminderView struct {
	DisplayName  string
	Name         string
	Days         string
	Price        string
	BillingCycle string
	RenewalDate  string
	CancelURL    string
}

// daysPhrase renders "1 day" or "N days".
func daysPhrase(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func renderReminder(event domain.ReminderEvent) (reminderMessage, error) {
	sub := event.Subscription

	renewalDate := sub.RenewalDate
	if parsed, err := time.Parse(domain.DateLayout, sub.RenewalDate); err == nil {
		renewalDate = parsed.Format(reminderDateLayout)
	}

	view := reminderView{
		DisplayName:  event.User.DisplayName(),
		Name:         sub.Name,
		Days:         daysPhrase(event.DaysUntilRenewal),
		Price:        fmt.Sprintf("%.2f", sub.Price),
		BillingCycle: string(sub.BillingCycle),
		RenewalDate:  renewalDate,
		CancelURL:    sub.CancelURL,
	}

	var body bytes.Buffer
	if err := reminderTemplate.Execute(&body, view); err != nil {
		return reminderMessage{}, err
	}

	return reminderMessage{
		Subject: fmt.Sprintf("%s renews in %s", sub.Name, view.Days),
		HTML:    body.String(),
	}, nil
}
