package slack

import (
	"strings"
	"testing"
	"time"

	"github.com/tdxstock/ingestd/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#ingest-alerts",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.RunFailurePayload{
		RunID:       "run-123",
		Kind:        "ingestion",
		Dataset:     "kline_daily_qfq",
		Mode:        "incremental",
		TriggeredBy: "schedule",
		Error:       "boom",
		ErrorClass:  "script",
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#ingest-alerts" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	if !containsAll(
		text,
		[]string{"Run failure alert", "run-123", "ingestion", "kline_daily_qfq (incremental)", "schedule", "boom", "script"},
	) {
		t.Fatalf("message text missing fields: %s", text)
	}
}

func TestFormatMessageJobLink(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL:   "https://hooks.slack.com/services/test",
		JobURLPrefix: "https://ingestd.local/api/ingest/jobs",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.RunFailurePayload{
		JobID: "job-123",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	expected := "<https://ingestd.local/api/ingest/jobs/job-123|job-123>"
	if !strings.Contains(text, expected) {
		t.Fatalf("expected job link %q in text: %s", expected, text)
	}
}

func TestFormatMessageEscapesDataset(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.RunFailurePayload{
		Dataset: "weird & <dataset>",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	if !strings.Contains(text, "weird &amp; &lt;dataset&gt;") {
		t.Fatalf("expected escaped dataset name, got: %s", text)
	}
}

func TestFormatJobValuePermutations(t *testing.T) {
	tcs := []struct {
		name   string
		jobID  string
		prefix string
		want   string
	}{
		{
			name:   "id with link",
			jobID:  "job-1",
			prefix: "https://ingestd.local/api/ingest/jobs",
			want:   "<https://ingestd.local/api/ingest/jobs/job-1|job-1>",
		},
		{
			name:   "id without link",
			jobID:  "job-2",
			prefix: "not a url",
			want:   "job-2",
		},
		{
			name:   "empty id",
			prefix: "https://ingestd.local/api/ingest/jobs",
			want:   "",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(Config{
				WebhookURL:   "https://hooks.slack.com/services/test",
				JobURLPrefix: tc.prefix,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := client.formatJobValue(tc.jobID)
			if got != tc.want {
				t.Fatalf("formatJobValue(%q) = %q, want %q", tc.jobID, got, tc.want)
			}
		})
	}
}

func TestFormatTargetValue(t *testing.T) {
	tcs := []struct {
		name    string
		dataset string
		mode    string
		want    string
	}{
		{name: "dataset and mode", dataset: "minute_1m", mode: "init", want: "minute_1m (init)"},
		{name: "dataset only", dataset: "board_daily", want: "board_daily"},
		{name: "testing run has no target", want: ""},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatTargetValue(tc.dataset, tc.mode); got != tc.want {
				t.Fatalf("formatTargetValue(%q,%q) = %q, want %q", tc.dataset, tc.mode, got, tc.want)
			}
		})
	}
}

func containsAll(text string, substrs []string) bool {
	for _, s := range substrs {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}
