package tests

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"reconcile/internal/service"
)

type recordingUploader struct {
	mu      sync.Mutex
	name    string
	body    []byte
	ctype   string
	failErr error
}

func (u *recordingUploader) Upload(ctx context.Context, name string, body []byte, contentType string) (string, error) {
	if u.failErr != nil {
		return "", u.failErr
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.name, u.body, u.ctype = name, body, contentType
	return "s3://reports/reconciliation/" + name, nil
}

func TestArchive_UploadsDailyReport(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	runDayScenario(t, h, baseTime)

	uploader := &recordingUploader{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archive := service.NewArchiveService(h.reporting, uploader, h.calendar, logger)

	location, err := archive.Archive(ctx, baseTime)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if location != "s3://reports/reconciliation/2024-03-15.json" {
		t.Errorf("unexpected location %q", location)
	}
	if uploader.ctype != "application/json" {
		t.Errorf("unexpected content type %q", uploader.ctype)
	}

	var report struct {
		Date  string `json:"date"`
		Stats struct {
			TotalPayments int             `json:"total_payments"`
			TotalAmount   decimal.Decimal `json:"total_amount"`
		} `json:"stats"`
		Records []struct {
			Kind string `json:"kind"`
		} `json:"records"`
	}
	if err := json.Unmarshal(uploader.body, &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if report.Date != "2024-03-15" {
		t.Errorf("expected date 2024-03-15, got %s", report.Date)
	}
	if report.Stats.TotalPayments != 3 {
		t.Errorf("expected 3 payments, got %d", report.Stats.TotalPayments)
	}
	if !report.Stats.TotalAmount.Equal(decimal.RequireFromString("750.00")) {
		t.Errorf("expected total 750.00, got %s", report.Stats.TotalAmount)
	}
	if len(report.Records) != 3 {
		t.Errorf("expected 3 UPI records on the day, got %d", len(report.Records))
	}
}

func TestArchive_Disabled(t *testing.T) {
	h := newHarness(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archive := service.NewArchiveService(h.reporting, nil, h.calendar, logger)

	if _, err := archive.Archive(context.Background(), baseTime); !errors.Is(err, service.ErrArchiveDisabled) {
		t.Errorf("expected ErrArchiveDisabled, got %v", err)
	}
}

func TestArchive_UploadFailure(t *testing.T) {
	h := newHarness(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uploader := &recordingUploader{failErr: errors.New("access denied")}
	archive := service.NewArchiveService(h.reporting, uploader, h.calendar, logger)

	if _, err := archive.Archive(context.Background(), baseTime); err == nil {
		t.Error("expected upload error")
	}
}
