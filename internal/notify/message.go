package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/david/estate-finder/internal/models"
	"github.com/david/estate-finder/internal/scoring"
)

type AlertType string

const (
	AlertInfo     AlertType = "info"
	AlertCritical AlertType = "critical"
	AlertError    AlertType = "error"
)

// Message is one alert, rendered to HTML by the SMTP sender.
type Message struct {
	Subject string
	Body    string
	Type    AlertType
}

const maxCriticalListed = 3

// TopCritical returns up to n CRITICAL records, highest total first.
func TopCritical(props []models.PropertyRecord, n int) []models.PropertyRecord {
	var out []models.PropertyRecord
	for _, p := range props {
		if models.PriorityOf(p) == models.PriorityCritical {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return models.TotalOf(out[i]) > models.TotalOf(out[j])
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func countPriority(props []models.PropertyRecord, p models.Priority) int {
	n := 0
	for _, prop := range props {
		if models.PriorityOf(prop) == p {
			n++
		}
	}
	return n
}

// CompletionMessage summarizes a finished run.
func CompletionMessage(run *models.RunSummary, props []models.PropertyRecord, dashboardURL string) Message {
	critical := TopCritical(props, maxCriticalListed)

	msg := Message{Subject: "Scrape Complete", Type: AlertInfo}
	if len(critical) > 0 {
		msg.Subject = "CRITICAL Matches! Scrape Complete"
		msg.Type = AlertCritical
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scrape Run: %s\n", run.RunID)
	fmt.Fprintf(&b, "Duration: %d minutes\n\n", int(run.Duration().Minutes()))
	b.WriteString("RESULTS:\n--------\n")
	fmt.Fprintf(&b, "Total Properties: %d\n", len(props))
	fmt.Fprintf(&b, "CRITICAL (85%%+): %d\n", countPriority(props, models.PriorityCritical))
	fmt.Fprintf(&b, "HIGH (75-84%%): %d\n", countPriority(props, models.PriorityHigh))
	fmt.Fprintf(&b, "MEDIUM (65-74%%): %d\n", countPriority(props, models.PriorityMedium))
	fmt.Fprintf(&b, "LOW (<65%%): %d\n\n", countPriority(props, models.PriorityLow))
	fmt.Fprintf(&b, "Locations Scraped: %s\n", strings.Join(run.LocationsScraped, ", "))
	fmt.Fprintf(&b, "Successful Sites: %s\n", strings.Join(run.SuccessfulSites, ", "))
	fmt.Fprintf(&b, "Failed Sites: %d\n", len(run.FailedSites))

	if len(critical) > 0 {
		b.WriteString("\nCRITICAL MATCHES:\n")
		b.WriteString(strings.Repeat("=", 40) + "\n")
		for _, p := range critical {
			fmt.Fprintf(&b, "\n%s\nMatch: %.1f%%\nPrice: €%s\nLocation: %s\nURL: %s\n---\n",
				p.Title, p.MatchPercentage, scoring.Thousands(p.Price), p.Location, p.URL)
		}
	}

	if n := len(run.FailedSites); n > 0 {
		fmt.Fprintf(&b, "\n%d sites failed - check logs\n", n)
	}
	if dashboardURL != "" {
		fmt.Fprintf(&b, "\nView Dashboard: %s\n", dashboardURL)
	}

	msg.Body = b.String()
	return msg
}

// FailureMessage reports a run that aborted.
func FailureMessage(err error) Message {
	return Message{
		Subject: "Scraper Failed",
		Body:    fmt.Sprintf("Error: %v\n\nCheck the scraper logs for details", err),
		Type:    AlertError,
	}
}

var htmlTemplate = template.Must(template.New("alert").Parse(`<html>
  <body style="font-family: Arial, sans-serif;">
    <h2 style="color: {{.Color}};">{{.Subject}}</h2>
    <pre style="background: #f5f5f5; padding: 15px; border-radius: 5px;">{{.Body}}</pre>
    <p style="color: #666; font-size: 12px;">Sent from estate-finder | {{.SentAt}}</p>
  </body>
</html>
`))

// RenderHTML wraps the plain-text body in the alert e-mail layout.
func RenderHTML(msg Message, sentAt time.Time) (string, error) {
	color := "#28a745"
	if msg.Type == AlertError {
		color = "#dc3545"
	}
	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, struct {
		Color, Subject, Body, SentAt string
	}{color, msg.Subject, msg.Body, sentAt.Format("2006-01-02 15:04:05 MST")})
	if err != nil {
		return "", fmt.Errorf("failed to render alert: %w", err)
	}
	return buf.String(), nil
}
