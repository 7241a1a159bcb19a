// Package notify delivers the per-run outcome through Pushover. The
// pipeline never depends on delivery succeeding: missing credentials or a
// failed POST are logged and swallowed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	appLog "sacal/internal/log"
	"sacal/internal/model"
)

const pushoverURL = "https://api.pushover.net/1/messages.json"

// Notifier posts run outcomes to the Pushover message API.
type Notifier struct {
	APIToken string
	UserKey  string

	// UpdateCron is the schedule the external runner fires on; it is only
	// used to tell the recipient when the next update lands.
	UpdateCron string

	// Endpoint overrides pushoverURL in tests.
	Endpoint string

	// Now overrides time.Now in tests.
	Now func() time.Time

	client *http.Client
}

func New(apiToken, userKey, updateCron string) *Notifier {
	return &Notifier{
		APIToken:   apiToken,
		UserKey:    userKey,
		UpdateCron: updateCron,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) configured() bool {
	return n.APIToken != "" && n.UserKey != ""
}

// Report sends the message matching the run outcome.
func (n *Notifier) Report(ctx context.Context, report model.RunReport) {
	switch report.Outcome() {
	case model.OutcomeSuccess:
		n.send(ctx, n.successMessage(report))
	default:
		n.send(ctx, n.failureMessage(report))
	}
}

func (n *Notifier) successMessage(report model.RunReport) string {
	var b strings.Builder
	b.WriteString("SA Calendars Updated!\n\n")
	b.WriteString("- Public Holidays\n")
	b.WriteString("- School Terms & Holidays\n\n")
	for _, note := range append(report.PublicHolidays.Notes, report.SchoolTerms.Notes...) {
		fmt.Fprintf(&b, "Note: %s\n", note)
	}
	if next := n.nextUpdate(); next != "" {
		fmt.Fprintf(&b, "\nNext update: %s\n", next)
	}
	b.WriteString("\nHave a great day!")
	return b.String()
}

func (n *Notifier) failureMessage(report model.RunReport) string {
	var b strings.Builder
	b.WriteString("SA Calendar Update Failed\n\n")
	for _, r := range []model.CalendarResult{report.PublicHolidays, report.SchoolTerms} {
		if r.OK() {
			fmt.Fprintf(&b, "OK   %s\n", r.Name)
		} else {
			fmt.Fprintf(&b, "FAIL %s: %v\n", r.Name, r.Err)
		}
	}
	b.WriteString("\nCheck the scheduled job logs:\n")
	b.WriteString("1. Navigate to the repository\n")
	b.WriteString("2. Open the failed run\n")
	b.WriteString("3. Check which step failed\n")
	return b.String()
}

// nextUpdate formats the next scheduled run ("Wednesday 1st October 2025")
// from the quarterly cron expression.
func (n *Notifier) nextUpdate() string {
	sched, err := cron.ParseStandard(n.UpdateCron)
	if err != nil {
		appLog.Warn("unparseable update cron, omitting next update", "cron", n.UpdateCron)
		return ""
	}
	now := time.Now()
	if n.Now != nil {
		now = n.Now()
	}
	next := sched.Next(now)
	return fmt.Sprintf("%s %d%s %s %d",
		next.Weekday(), next.Day(), daySuffix(next.Day()), next.Month(), next.Year())
}

func daySuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func (n *Notifier) send(ctx context.Context, message string) {
	if !n.configured() {
		appLog.Warn("pushover credentials missing, skipping notification")
		return
	}

	endpoint := n.Endpoint
	if endpoint == "" {
		endpoint = pushoverURL
	}
	form := url.Values{
		"token":   {n.APIToken},
		"user":    {n.UserKey},
		"message": {message},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		appLog.Error("building notification request", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := n.client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		appLog.Error("sending notification", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		appLog.Error("notification rejected", errors.New(resp.Status), "status", resp.StatusCode)
		return
	}
	appLog.Info("notification sent")
}
