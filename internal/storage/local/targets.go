package local

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// TargetList is a fixed TargetSource.
type TargetList []crawler.Target

var _ crawler.TargetSource = TargetList(nil)

// Targets implements crawler.TargetSource.
func (l TargetList) Targets() []crawler.Target {
	return l
}

// LoadTargets reads a target file. Files ending in .csv are parsed as
// "name,website" rows; anything else is treated as JSON lines.
func LoadTargets(path string) (TargetList, error) {
	// #nosec G304 -- the target path comes from the command line.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ParseCSVTargets(bytes.NewReader(raw))
	}
	return ParseJSONLTargets(bytes.NewReader(raw))
}

// ParseJSONLTargets decodes one {"name","website"} object per line.
func ParseJSONLTargets(r io.Reader) (TargetList, error) {
	var out TargetList
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var target crawler.Target
		if err := json.Unmarshal([]byte(text), &target); err != nil {
			return nil, fmt.Errorf("targets line %d: %w", line, err)
		}
		out = append(out, trimTarget(target))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan targets: %w", err)
	}
	return out, nil
}

// ParseCSVTargets reads name,website rows. A first row whose first column
// is "name" is treated as a header.
func ParseCSVTargets(r io.Reader) (TargetList, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out TargetList
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv targets: %w", err)
		}
		if first {
			first = false
			if len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "name") {
				continue
			}
		}
		if blankRecord(record) {
			continue
		}
		target := crawler.Target{Name: record[0]}
		if len(record) > 1 {
			target.Website = record[1]
		}
		out = append(out, trimTarget(target))
	}
	return out, nil
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func trimTarget(t crawler.Target) crawler.Target {
	return crawler.Target{Name: strings.TrimSpace(t.Name), Website: strings.TrimSpace(t.Website)}
}
