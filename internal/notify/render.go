package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

//go:embed templates/*.html
var templateFS embed.FS

const unknownMerchant = "Unknown Merchant"

// Email is a rendered message ready for delivery.
type Email struct {
	Subject string
	HTML    string
	Text    string
}

// RendererConfig holds the values shared by every template.
type RendererConfig struct {
	AppURL        string
	SupportEmail  string
	AlertCooldown time.Duration
	Now           func() time.Time
}

// Renderer turns messages into HTML and plain-text email bodies.
type Renderer struct {
	tmpl *template.Template
	cfg  RendererConfig
}

type templateData struct {
	Data
	Year         int
	AppURL       string
	SupportEmail string
	CooldownText string
}

// NewRenderer parses the embedded templates.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Renderer{tmpl: tmpl, cfg: cfg}, nil
}

// Render builds the subject and bodies for msg.
func (r *Renderer) Render(msg Message) (*Email, error) {
	data := msg.Data
	if data.MerchantName == "" {
		data.MerchantName = unknownMerchant
	}
	if data.Name == "" {
		data.Name = "Partner"
	}

	var subject string
	switch msg.Type {
	case TypeWelcome:
		subject = "Welcome to the Future of Your Affiliate Business!"
	case TypePasswordReset:
		subject = "Reset Your AffHubPro Password"
	case TypeSyncFailed:
		subject = "ShareASale Sync Failed - Action Required"
	case TypeLinkBroken:
		subject = "Your Affiliate Link is Broken - " + data.MerchantName
	case TypeLinkRecovered:
		subject = "Good News - Your Affiliate Link is Back Online"
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msg.Type)
	}

	var buf bytes.Buffer
	err := r.tmpl.ExecuteTemplate(&buf, string(msg.Type), templateData{
		Data:         data,
		Year:         r.cfg.Now().Year(),
		AppURL:       strings.TrimRight(r.cfg.AppURL, "/"),
		SupportEmail: r.cfg.SupportEmail,
		CooldownText: cooldownText(r.cfg.AlertCooldown),
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", msg.Type, err)
	}

	html := buf.String()
	text, err := htmlToText(html)
	if err != nil {
		return nil, err
	}
	return &Email{Subject: subject, HTML: html, Text: text}, nil
}

// htmlToText derives the plain-text alternative from a rendered body.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse rendered email: %w", err)
	}
	doc.Find("head, style, script").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	// Call-to-action targets.
	doc.Find("a.cta[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lines = append(lines, strings.TrimSpace(s.Text())+": "+href)
	})

	return strings.Join(lines, "\n"), nil
}

func cooldownText(d time.Duration) string {
	if d <= 0 {
		d = 24 * time.Hour
	}
	if d == time.Hour {
		return "1 hour"
	}
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return d.String()
}
