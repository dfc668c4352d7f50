package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/obsidianstack/diskhealth/internal/config"
	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/report"
)

const defaultTimeout = 10 * time.Second

// Notifier posts one message per run to every configured webhook when a
// drive reaches the configured class.
//
// A Notifier that outlives a run remembers what it sent: a drive is not
// notified again at the same class until the cooldown has passed. Safe for
// concurrent use.
type Notifier struct {
	client *http.Client
	now    func() time.Time

	mu       sync.Mutex
	minClass model.Class
	cooldown time.Duration
	webhooks []config.WebhookConfig
	lastFire map[string]time.Time // key: "device:class"
}

// New returns a Notifier for cfg. A nil client uses a default with a 10s
// timeout.
func New(cfg config.Notify, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	n := &Notifier{client: client, now: time.Now, lastFire: make(map[string]time.Time)}
	n.Reconfigure(cfg)
	return n
}

// Reconfigure applies a reloaded notify section. Cooldown state is kept.
func (n *Notifier) Reconfigure(cfg config.Notify) {
	minClass := model.Class(cfg.MinClass)
	if minClass == "" {
		minClass = model.ClassCritical
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minClass = minClass
	n.cooldown = cfg.Cooldown.Std()
	n.webhooks = cfg.Webhooks
}

// Alert is the run summary delivered to webhooks.
type Alert struct {
	Hostname  string        `json:"hostname"`
	Timestamp time.Time     `json:"timestamp"`
	Class     model.Class   `json:"class"`
	Message   string        `json:"message"`
	Drives    []DriveAlert  `json:"drives"`
	Summary   model.Summary `json:"summary"`
}

// DriveAlert is what a webhook reader needs to triage one drive.
type DriveAlert struct {
	Device       string        `json:"device"`
	Model        string        `json:"model"`
	Score        int           `json:"score"`
	Class        model.Class   `json:"class"`
	SmartStatus  model.Verdict `json:"smart_status,omitempty"`
	TemperatureC *int          `json:"temperature,omitempty"`
	UsagePercent *int          `json:"usage_percent,omitempty"`
	Issues       []string      `json:"issues"`
}

func driveAlert(d model.DriveResult) DriveAlert {
	da := DriveAlert{
		Device: d.Path,
		Model:  d.Model,
		Score:  *d.Score,
		Class:  d.Class,
		Issues: make([]string, 0, len(d.Issues)),
	}
	if d.Smart != nil {
		da.SmartStatus = d.Smart.Verdict
		da.TemperatureC = d.Smart.TemperatureC
	}
	if d.Usage != nil {
		da.UsagePercent = model.Ptr(d.Usage.Percent)
	}
	for _, is := range d.Issues {
		da.Issues = append(da.Issues, is.Message)
	}
	return da
}

// Build returns the alert for rep, or nil when no drive is at or above the
// minimum class. It ignores the cooldown.
func (n *Notifier) Build(rep *model.Report) *Alert {
	n.mu.Lock()
	minClass := n.minClass
	n.mu.Unlock()

	var drives []model.DriveResult
	for _, d := range rep.Drives {
		if d.State == model.StateScored && report.AtLeast(d.Class, minClass) {
			drives = append(drives, d)
		}
	}
	return buildAlert(rep, drives)
}

func buildAlert(rep *model.Report, drives []model.DriveResult) *Alert {
	if len(drives) == 0 {
		return nil
	}
	a := &Alert{Hostname: rep.Hostname, Timestamp: rep.Timestamp, Class: model.ClassHealthy, Summary: rep.Summary}
	var parts []string
	for _, d := range drives {
		a.Drives = append(a.Drives, driveAlert(d))
		if report.AtLeast(d.Class, a.Class) {
			a.Class = d.Class
		}
		parts = append(parts, fmt.Sprintf("%s %s (score %d)", d.Path, d.Class, *d.Score))
	}
	a.Message = fmt.Sprintf("%s: %d drive(s) need attention: %s", hostOf(a), len(a.Drives), strings.Join(parts, ", "))
	return a
}

// Notify delivers the alert for rep, if any. Errors are logged and never
// returned: notification must not change the outcome of a run. The cooldown
// starts only once at least one webhook accepted the alert.
func (n *Notifier) Notify(ctx context.Context, rep *model.Report) {
	webhooks, a, keys := n.due(rep)
	if len(webhooks) == 0 || a == nil {
		return
	}

	delivered := 0
	for _, wh := range webhooks {
		url := wh.URL()
		if url == "" {
			slog.Warn("notify: webhook url not set, skipping", "type", wh.Type, "url_env", wh.URLEnv)
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(ctx, url, a)
		case "teams":
			err = n.sendTeams(ctx, url, a)
		case "http":
			err = n.sendHTTP(ctx, url, a)
		default:
			slog.Warn("notify: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("notify: webhook delivery failed", "type", wh.Type, "class", a.Class, "err", err)
			continue
		}
		delivered++
		slog.Debug("notify: webhook delivered", "type", wh.Type, "class", a.Class, "drives", len(a.Drives))
	}

	if delivered > 0 {
		n.markFired(keys)
	}
}

// due selects the drives outside their cooldown and returns the cooldown
// keys to record once delivery succeeds.
func (n *Notifier) due(rep *model.Report) ([]config.WebhookConfig, *Alert, []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.webhooks) == 0 {
		return nil, nil, nil
	}

	now := n.now()
	var (
		drives []model.DriveResult
		keys   []string
	)
	for _, d := range rep.Drives {
		if d.State != model.StateScored || !report.AtLeast(d.Class, n.minClass) {
			continue
		}
		key := d.Path + ":" + string(d.Class)
		if last, ok := n.lastFire[key]; ok && now.Sub(last) < n.cooldown {
			slog.Debug("notify: within cooldown, skipping", "device", d.Path, "class", d.Class)
			continue
		}
		keys = append(keys, key)
		drives = append(drives, d)
	}
	return n.webhooks, buildAlert(rep, drives), keys
}

func (n *Notifier) markFired(keys []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	for _, k := range keys {
		n.lastFire[k] = now
	}
}

func (n *Notifier) sendSlack(ctx context.Context, url string, a *Alert) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s disk health on %s*", classLabel(a.Class), hostOf(a))
	for _, d := range a.Drives {
		fmt.Fprintf(&b, "\n• `%s` %s: %s, score %d", d.Device, d.Model, d.Class, d.Score)
		if len(d.Issues) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(d.Issues, "; "))
		}
	}
	body, _ := json.Marshal(map[string]string{"text": b.String()})
	return n.post(ctx, url, body)
}

// sendTeams posts a MessageCard with one section of facts per drive.
func (n *Notifier) sendTeams(ctx context.Context, url string, a *Alert) error {
	type fact struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	type section struct {
		ActivityTitle string `json:"activityTitle"`
		Facts         []fact `json:"facts"`
	}

	sections := make([]section, 0, len(a.Drives))
	for _, d := range a.Drives {
		facts := []fact{
			{"Class", string(d.Class)},
			{"Score", fmt.Sprint(d.Score)},
		}
		if d.SmartStatus != "" {
			facts = append(facts, fact{"SMART", string(d.SmartStatus)})
		}
		if d.TemperatureC != nil {
			facts = append(facts, fact{"Temperature", fmt.Sprintf("%d°C", *d.TemperatureC)})
		}
		if d.UsagePercent != nil {
			facts = append(facts, fact{"Usage", fmt.Sprintf("%d%%", *d.UsagePercent)})
		}
		if len(d.Issues) > 0 {
			facts = append(facts, fact{"Issues", strings.Join(d.Issues, "; ")})
		}
		sections = append(sections, section{ActivityTitle: d.Device + " " + d.Model, Facts: facts})
	}

	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": classColor(a.Class),
		"summary":    fmt.Sprintf("%d drive(s) %s on %s", len(a.Drives), a.Class, hostOf(a)),
		"title":      fmt.Sprintf("%s Disk health on %s", classLabel(a.Class), hostOf(a)),
		"text": fmt.Sprintf("%d critical, %d warning, %d failed of %d drives",
			a.Summary.Critical, a.Summary.Warning, a.Summary.Failed,
			a.Summary.Critical+a.Summary.Warning+a.Summary.Info+a.Summary.Healthy+a.Summary.Failed),
		"sections": sections,
	}
	body, _ := json.Marshal(payload)
	return n.post(ctx, url, body)
}

func (n *Notifier) sendHTTP(ctx context.Context, url string, a *Alert) error {
	body, _ := json.Marshal(map[string]interface{}{"alert": a})
	return n.post(ctx, url, body)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func hostOf(a *Alert) string {
	if a.Hostname == "" {
		return "host"
	}
	return a.Hostname
}

func classLabel(c model.Class) string {
	switch c {
	case model.ClassCritical:
		return "[CRITICAL]"
	case model.ClassWarning:
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func classColor(c model.Class) string {
	switch c {
	case model.ClassCritical:
		return "FF4F6A"
	case model.ClassWarning:
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
