package cli

import (
	"testing"
	"time"
)

func TestParseWhen(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"rfc3339", "2026-06-01T13:00:00Z", false},
		{"local", "2026-06-01 13:00", false},
		{"date only", "2026-06-01", true},
		{"garbage", "next tuesday", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWhen(tt.input)
			if tt.wantErr && err == nil {
				t.Errorf("parseWhen(%q) expected error, got nil", tt.input)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("parseWhen(%q) unexpected error: %v", tt.input, err)
			}
		})
	}
}

func TestParseWhenRFC3339KeepsZone(t *testing.T) {
	got, err := parseWhen("2026-06-01T13:00:00Z")
	if err != nil {
		t.Fatalf("parseWhen failed: %v", err)
	}
	want := time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseWhen = %v, want %v", got, want)
	}
}

func TestParseStep(t *testing.T) {
	tp, err := parseStep("60:email:thank the visitor")
	if err != nil {
		t.Fatalf("parseStep failed: %v", err)
	}
	if tp.DelayMinutes != 60 {
		t.Errorf("DelayMinutes = %d, want 60", tp.DelayMinutes)
	}
	if tp.Channel != "email" {
		t.Errorf("Channel = %q, want email", tp.Channel)
	}
	if tp.TemplatePrompt != "thank the visitor" {
		t.Errorf("TemplatePrompt = %q", tp.TemplatePrompt)
	}
}

func TestParseStepPromptMayContainColons(t *testing.T) {
	tp, err := parseStep("1440:sms:reminder: tour at 2:30")
	if err != nil {
		t.Fatalf("parseStep failed: %v", err)
	}
	if tp.TemplatePrompt != "reminder: tour at 2:30" {
		t.Errorf("TemplatePrompt = %q", tp.TemplatePrompt)
	}
}

func TestParseStepNoPrompt(t *testing.T) {
	tp, err := parseStep("30:sms")
	if err != nil {
		t.Fatalf("parseStep failed: %v", err)
	}
	if tp.DelayMinutes != 30 || tp.Channel != "sms" || tp.TemplatePrompt != "" {
		t.Errorf("unexpected touchpoint: %+v", tp)
	}
}

func TestParseStepErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing channel", "60"},
		{"bad delay", "soon:email"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseStep(tt.input); err == nil {
				t.Errorf("parseStep(%q) expected error, got nil", tt.input)
			}
		})
	}
}
