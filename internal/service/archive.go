package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Uploader stores a named object and returns its location.
type Uploader interface {
	Upload(ctx context.Context, name string, body []byte, contentType string) (string, error)
}

// ArchiveService exports a day's report to object storage.
type ArchiveService struct {
	reporting *ReportingService
	uploader  Uploader // Optional
	calendar  *Calendar
	logger    *slog.Logger
}

// NewArchiveService creates a new ArchiveService. uploader may be nil, in
// which case Archive returns ErrArchiveDisabled.
func NewArchiveService(reporting *ReportingService, uploader Uploader, calendar *Calendar, logger *slog.Logger) *ArchiveService {
	return &ArchiveService{
		reporting: reporting,
		uploader:  uploader,
		calendar:  calendar,
		logger:    logger,
	}
}

// Report builds the report document for day.
func (s *ArchiveService) Report(ctx context.Context, day time.Time) (*DailyReport, error) {
	stats, err := s.reporting.Stats(ctx, day)
	if err != nil {
		return nil, err
	}

	records, err := s.reporting.Records(ctx, day)
	if err != nil {
		return nil, err
	}

	date := s.calendar.Key(day)
	return &DailyReport{
		Date:        date,
		GeneratedAt: time.Now(),
		Stats:       NewStatsView(date, stats),
		Records:     NewRecordViews(records),
	}, nil
}

// Archive uploads the report of day and returns its location.
func (s *ArchiveService) Archive(ctx context.Context, day time.Time) (string, error) {
	if s.uploader == nil {
		return "", ErrArchiveDisabled
	}

	report, err := s.Report(ctx, day)
	if err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	location, err := s.uploader.Upload(ctx, report.Date+".json", body, "application/json")
	if err != nil {
		return "", fmt.Errorf("upload report %s: %w", report.Date, err)
	}

	s.logger.InfoContext(ctx, "report archived", "date", report.Date, "location", location, "records", len(report.Records))
	return location, nil
}
