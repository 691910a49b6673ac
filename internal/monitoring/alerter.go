package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jrklein8/ILMFoodNBrew/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertScrapeFailureRate AlertType = "scrape_failure_rate"
	AlertStaleDataset      AlertType = "stale_dataset"
	AlertGeocodeMissRate   AlertType = "geocode_miss_rate"
)

// minFinishedRuns is how many finished runs the window needs before the
// failure-rate check fires. One bad run out of one is not a trend.
const minFinishedRuns = 3

// minGeocodeLookups is the floor for the miss-rate check.
const minGeocodeLookups = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Check scrape failure rate.
	finished := snap.RunsComplete + snap.RunsFailed
	if finished >= minFinishedRuns && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertScrapeFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Scrape failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"fail_rate": snap.FailRate,
				"threshold": a.cfg.FailureRateThreshold,
				"failed":    snap.RunsFailed,
				"finished":  finished,
			},
			Timestamp: now,
		})
	}

	// Check dataset freshness.
	if a.cfg.StaleAfterHours > 0 {
		staleAfter := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		switch {
		case !snap.DatasetPresent:
			alerts = append(alerts, Alert{
				Type:     AlertStaleDataset,
				Severity: "high",
				Message:  "No dataset has been published yet",
				Details: map[string]any{
					"runs_total": snap.RunsTotal,
				},
				Timestamp: now,
			})
		case snap.CollectedAt.Sub(snap.DatasetModifiedAt) > staleAfter:
			age := snap.CollectedAt.Sub(snap.DatasetModifiedAt)
			alerts = append(alerts, Alert{
				Type:     AlertStaleDataset,
				Severity: "high",
				Message: fmt.Sprintf(
					"Dataset is %.1fh old, threshold is %dh",
					age.Hours(), a.cfg.StaleAfterHours,
				),
				Details: map[string]any{
					"age_hours":        age.Hours(),
					"threshold_hours":  a.cfg.StaleAfterHours,
					"last_complete_at": snap.LastCompleteAt,
				},
				Timestamp: now,
			})
		}
	}

	// Check geocode miss rate.
	lookups := snap.Geocoded + snap.CacheHits + snap.Missed
	if a.cfg.GeocodeMissThreshold > 0 && lookups >= minGeocodeLookups && snap.MissRate > a.cfg.GeocodeMissThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertGeocodeMissRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Geocode miss rate %.1f%% exceeds threshold %.1f%% (%d missed / %d lookups in last %dh)",
				snap.MissRate*100, a.cfg.GeocodeMissThreshold*100,
				snap.Missed, lookups, snap.LookbackHours,
			),
			Details: map[string]any{
				"miss_rate": snap.MissRate,
				"threshold": a.cfg.GeocodeMissThreshold,
				"missed":    snap.Missed,
				"lookups":   lookups,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
