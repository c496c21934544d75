// Package memory persists what the agent remembers between sessions as plain
// markdown under workspace/memory: one curated MEMORY.md, dated diary files,
// and free-form insight notes under memory/insights. Everything is readable
// and editable by hand.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	dirName         = "memory"
	longTermFile    = "MEMORY.md"
	insightsDirName = "insights"
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05"

	defaultRecentDiaries = 3
)

// DiaryEntry is one dated diary file with its content.
type DiaryEntry struct {
	Date    string
	Path    string
	Content string
}

// Insight is a named note saved for permanent recall.
type Insight struct {
	Name    string
	Path    string
	Content string
}

// Manager reads and writes the memory tree rooted at workspace/memory.
type Manager struct {
	root         string
	longTermPath string
	insightsPath string
}

// NewManager creates a manager rooted at workspacePath.
func NewManager(workspacePath string) *Manager {
	root := filepath.Join(workspacePath, dirName)
	return &Manager{
		root:         root,
		longTermPath: filepath.Join(root, longTermFile),
		insightsPath: filepath.Join(root, insightsDirName),
	}
}

// Ensure creates the memory directory and an empty long-term file on first
// use.
func (m *Manager) Ensure() error {
	if err := os.MkdirAll(m.root, 0755); err != nil {
		return err
	}
	if _, err := os.Stat(m.longTermPath); os.IsNotExist(err) {
		return os.WriteFile(m.longTermPath, nil, 0644)
	}
	return nil
}

func (m *Manager) ReadLongTerm() (string, error) {
	if err := m.Ensure(); err != nil {
		return "", err
	}
	return readTrimmed(m.longTermPath)
}

func (m *Manager) WriteLongTerm(content string) error {
	if err := m.Ensure(); err != nil {
		return err
	}
	return os.WriteFile(m.longTermPath, []byte(strings.TrimSpace(content)), 0644)
}

// AppendDiary appends a timestamped line to today's diary file.
func (m *Manager) AppendDiary(entry string) (string, error) {
	return m.AppendDiaryAt(time.Now(), entry)
}

// AppendDiaryAt is AppendDiary with an explicit timestamp, for tests.
func (m *Manager) AppendDiaryAt(ts time.Time, entry string) (string, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", fmt.Errorf("entry is required")
	}
	if err := m.Ensure(); err != nil {
		return "", err
	}

	path := m.diaryPath(ts.Format(dateLayout))
	line := fmt.Sprintf("- [%s] %s\n", ts.Format(timeLayout), entry)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Manager) ReadDiary(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", fmt.Errorf("date is required")
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
	}
	return readTrimmed(m.diaryPath(date))
}

// ReadRecentDiaries returns up to limit most recent non-empty diary files in
// chronological order.
func (m *Manager) ReadRecentDiaries(limit int) ([]DiaryEntry, error) {
	if limit <= 0 {
		limit = defaultRecentDiaries
	}
	dates, err := m.diaryDates()
	if err != nil {
		return nil, err
	}
	if len(dates) > limit {
		dates = dates[len(dates)-limit:]
	}

	out := make([]DiaryEntry, 0, len(dates))
	for _, date := range dates {
		path := m.diaryPath(date)
		content, err := readTrimmed(path)
		if err != nil {
			return nil, err
		}
		if content == "" {
			continue
		}
		out = append(out, DiaryEntry{Date: date, Path: path, Content: content})
	}
	return out, nil
}

// SaveInsight stores a named note under memory/insights. Names without a
// markdown or text extension get .md appended. The stored file name is the
// base of name, so callers cannot write outside the insights directory.
func (m *Manager) SaveInsight(name, content string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("insight name is required")
	}
	if !strings.HasSuffix(name, ".md") && !strings.HasSuffix(name, ".txt") {
		name += ".md"
	}
	if err := os.MkdirAll(m.insightsPath, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(m.insightsPath, name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// ListInsights returns all saved insights sorted by name. A missing insights
// directory is an empty list, not an error.
func (m *Manager) ListInsights() ([]Insight, error) {
	entries, err := os.ReadDir(m.insightsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Insight
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".md") && !strings.HasSuffix(name, ".txt") {
			continue
		}
		path := filepath.Join(m.insightsPath, name)
		content, err := readTrimmed(path)
		if err != nil {
			return nil, err
		}
		if content == "" {
			continue
		}
		out = append(out, Insight{Name: name, Path: path, Content: content})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Manager) diaryPath(date string) string {
	return filepath.Join(m.root, date+".md")
}

// diaryDates lists the dates that have a diary file, sorted ascending.
func (m *Manager) diaryDates() ([]string, error) {
	if err := m.Ensure(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, err
	}

	var dates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date := strings.TrimSuffix(entry.Name(), ".md")
		if date == entry.Name() {
			continue
		}
		if _, err := time.Parse(dateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
