// Package report writes keyword failure records with their diagnostic
// attachments.
//
// Layout under the failures directory:
//   - <id>-failure.json: the Failure record
//   - <id>-screenshot.png: screenshot at failure time, when available
//   - <id>-source.xml: page source at failure time, when available
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/json-iterator/go"

	"github.com/devicelab-dev/uiscope/pkg/core"
)

// Attachment is a file written next to a failure record.
type Attachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// Failure is one keyword failure.
type Failure struct {
	ID          string                 `json:"id"`
	Keyword     string                 `json:"keyword"`
	Category    string                 `json:"category"`
	Code        string                 `json:"code,omitempty"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Time        time.Time              `json:"time"`
	Attachments []Attachment           `json:"attachments,omitempty"`
	// Problems lists diagnostics that could not be collected.
	Problems []string `json:"problems,omitempty"`
}

// NewFailure builds a record from a keyword error.
func NewFailure(id, keyword string, err error) Failure {
	f := Failure{
		ID:       id,
		Keyword:  keyword,
		Category: Categorize(err),
		Time:     time.Now(),
	}
	if err != nil {
		f.Message = err.Error()
	}
	var ee *core.ExecutionError
	if errors.As(err, &ee) {
		f.Code = ee.Code
		f.Details = ee.Details
	}
	return f
}

// Categorize names the failure class of err.
func Categorize(err error) string {
	var ee *core.ExecutionError
	if !errors.As(err, &ee) {
		return "Unknown"
	}
	switch ee.Category {
	case core.ErrCategoryLocator:
		return "Invalid Locator"
	case core.ErrCategoryUsage:
		return "Usage Error"
	case core.ErrCategoryLookup:
		if ee.Code == core.ErrElementNotVisible.Code || ee.Code == core.ErrElementVisible.Code {
			return "Visibility"
		}
		return "Element Not Found"
	case core.ErrCategoryTimeout:
		return "Timeout"
	case core.ErrCategoryConnection:
		return "Connection Error"
	}
	return "Unknown"
}

// Write stores f and the given attachments in dir. Empty attachment data
// is skipped. f.Attachments is filled with what was written.
func Write(dir string, f *Failure, screenshot []byte, source string) error {
	if f.ID == "" {
		return fmt.Errorf("failure record has no id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create failures dir: %w", err)
	}

	if len(screenshot) > 0 {
		if err := writeAttachment(dir, f, "screenshot", f.ID+"-screenshot.png", "image/png", screenshot); err != nil {
			return err
		}
	}
	if source != "" {
		if err := writeAttachment(dir, f, "source", f.ID+"-source.xml", "application/xml", []byte(source)); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal failure %s: %w", f.ID, err)
	}
	path := filepath.Join(dir, f.ID+"-failure.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write failure %s: %w", f.ID, err)
	}
	return nil
}

func writeAttachment(dir string, f *Failure, name, file, typ string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
		return fmt.Errorf("write %s for %s: %w", name, f.ID, err)
	}
	f.Attachments = append(f.Attachments, Attachment{Name: name, Source: file, Type: typ})
	return nil
}

// Read loads every failure record in dir, oldest first. A missing dir
// yields no records.
func Read(dir string) ([]Failure, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read failures dir: %w", err)
	}

	var out []Failure
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "-failure.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var f Failure
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}
