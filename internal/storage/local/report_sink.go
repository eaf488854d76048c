package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// ReportSink appends one JSON line per TargetReport and syncs after each
// write, so every line on disk is a complete record.
type ReportSink struct {
	mu   sync.Mutex
	file *os.File
	path string
}

var _ crawler.ReportSink = (*ReportSink)(nil)

// NewReportSink opens (or creates) path for appending.
func NewReportSink(path string) (*ReportSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("report path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	// #nosec G304 -- the report path comes from operator configuration.
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open report stream: %w", err)
	}
	return &ReportSink{file: file, path: path}, nil
}

// Path returns the report file location.
func (s *ReportSink) Path() string {
	return s.path
}

// WriteReport implements crawler.ReportSink.
func (s *ReportSink) WriteReport(_ context.Context, report crawler.TargetReport) error {
	line, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("report sink closed")
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync report: %w", err)
	}
	return nil
}

// Close releases the file. Later writes fail.
func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("close report stream: %w", err)
	}
	return nil
}
