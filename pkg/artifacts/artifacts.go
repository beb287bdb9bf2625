// Package artifacts owns the per-run directory layout and file naming:
// screenshots, trace, video, logs, the scenario copy and the environment
// snapshot, all with secret masking applied on the way to disk.
package artifacts

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/uiflow/uiflow/pkg/driver"
	"github.com/uiflow/uiflow/pkg/schema"
)

// unsafeNameRe matches characters that may not appear in artifact file
// names derived from step names.
var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

var dashRunRe = regexp.MustCompile(`-{2,}`)

// Manager owns one run directory. It is created by a single Runner
// invocation and never shared across scenarios.
type Manager struct {
	Config  schema.ArtifactsConfig
	BaseDir string
	RunDir  string

	masker *Masker

	runnerLog *lineLog
}

// NewManager creates a manager rooted under baseDir.
func NewManager(cfg schema.ArtifactsConfig, baseDir string) *Manager {
	return &Manager{
		Config:  cfg,
		BaseDir: baseDir,
		masker:  NewMasker(),
	}
}

// Masker exposes the manager's secret masker so the runner can register
// resolved secret values as it learns them.
func (m *Manager) Masker() *Masker { return m.masker }

// CreateRunDir creates run-YYYYMMDD-HHMMSS-<slug> under the base
// directory and opens the runner log. The slug keeps parallel scenarios
// in disjoint directories; the exclusive Mkdir bumps a numeric suffix
// when two runs of the same scenario land in the same second.
// Subdirectories are created on first use.
func (m *Manager) CreateRunDir(now time.Time, title string) error {
	base := "run-" + now.Format("20060102-150405")
	if slug := sanitizeName(title); slug != "" {
		if len(slug) > 40 {
			slug = strings.Trim(slug[:40], "-")
		}
		base += "-" + slug
	}
	if err := os.MkdirAll(m.BaseDir, 0755); err != nil {
		return fmt.Errorf("create artifacts directory: %w", err)
	}

	dir := ""
	for i := 1; ; i++ {
		name := base
		if i > 1 {
			name = fmt.Sprintf("%s-%d", base, i)
		}
		dir = filepath.Join(m.BaseDir, name)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create run directory: %w", err)
		}
	}
	m.RunDir = dir

	logPath := filepath.Join(dir, "logs", "runner.log")
	lw, err := newLineLog(logPath)
	if err != nil {
		return fmt.Errorf("open runner log: %w", err)
	}
	m.runnerLog = lw
	return nil
}

// Logf appends a masked, timestamped line to logs/runner.log.
func (m *Manager) Logf(format string, args ...any) {
	if m.runnerLog == nil {
		return
	}
	m.runnerLog.Writef(m.masker.Mask(fmt.Sprintf(format, args...)))
}

// Close flushes and closes the run log.
func (m *Manager) Close() error {
	if m.runnerLog == nil {
		return nil
	}
	return m.runnerLog.Close()
}

// ScreenshotPath builds the canonical screenshot file name:
// NNNN_<suffix>-<sanitized-step-name>.<ext>, with a zero-padded
// four-digit step index.
func (m *Manager) ScreenshotPath(stepIndex int, stepName, suffix string) string {
	ext := "png"
	if m.Config.Screenshots.Format == "jpeg" {
		ext = "jpg"
	}
	name := sanitizeName(stepName)
	if name == "" {
		name = "step"
	}
	file := fmt.Sprintf("%04d_%s-%s.%s", stepIndex, suffix, name, ext)
	return filepath.Join(m.RunDir, "screenshots", file)
}

// SaveScreenshot captures the page into the canonical location.
func (m *Manager) SaveScreenshot(page driver.Page, stepIndex int, stepName, suffix string) (string, error) {
	path := m.ScreenshotPath(stepIndex, stepName, suffix)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create screenshots directory: %w", err)
	}
	if err := page.Screenshot(path, m.Config.Screenshots.Format, m.Config.Screenshots.Quality); err != nil {
		return "", err
	}
	return path, nil
}

// TracePath is where the driver trace archive lands.
func (m *Manager) TracePath() string {
	return filepath.Join(m.RunDir, "trace", "trace.zip")
}

// VideoDir is handed to the driver context for video recording.
func (m *Manager) VideoDir() string {
	return filepath.Join(m.RunDir, "video")
}

// EnsureTraceDir creates trace/ before the driver writes into it.
func (m *Manager) EnsureTraceDir() error {
	return os.MkdirAll(filepath.Join(m.RunDir, "trace"), 0755)
}

// SaveFlowCopy persists the executed scenario as flow.yaml, masked.
func (m *Manager) SaveFlowCopy(s *schema.Scenario) error {
	var buf bytes.Buffer
	if err := schema.Dump(s, &buf); err != nil {
		return err
	}
	masked := m.masker.Mask(buf.String())
	path := filepath.Join(m.RunDir, "flow.yaml")
	if err := os.WriteFile(path, []byte(masked), 0644); err != nil {
		return fmt.Errorf("write flow copy: %w", err)
	}
	return nil
}

// EnvSnapshot is the recorded execution environment, written as env.json.
type EnvSnapshot struct {
	Viewport     string            `json:"viewport,omitempty"`
	Locale       string            `json:"locale,omitempty"`
	Timezone     string            `json:"timezone,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
	Vars         map[string]string `json:"vars"`
	OS           string            `json:"os"`
	Arch         string            `json:"arch"`
	Timestamp    string            `json:"timestamp"`
}

// SaveEnvSnapshot writes env.json. Every value registered as secret is
// replaced by the mask before serialization; secretVars are masked by
// name regardless of value.
func (m *Manager) SaveEnvSnapshot(snap EnvSnapshot, secretVars map[string]bool) error {
	maskedVars := make(map[string]string, len(snap.Vars))
	for k, v := range snap.Vars {
		if secretVars[k] {
			maskedVars[k] = MaskString
		} else {
			maskedVars[k] = m.masker.Mask(v)
		}
	}
	snap.Vars = maskedVars
	snap.OS = runtime.GOOS
	snap.Arch = runtime.GOARCH
	snap.Timestamp = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal env snapshot: %w", err)
	}
	path := filepath.Join(m.RunDir, "env.json")
	if err := os.WriteFile(path, []byte(m.masker.Mask(string(data))), 0644); err != nil {
		return fmt.Errorf("write env snapshot: %w", err)
	}
	return nil
}

// SaveConsoleLog persists the browser console messages, masked.
func (m *Manager) SaveConsoleLog(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	path := filepath.Join(m.RunDir, "logs", "console.log")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	content := m.masker.Mask(strings.Join(lines, "\n") + "\n")
	return os.WriteFile(path, []byte(content), 0644)
}

// CleanupOnSuccess removes on_failure artifacts after an all-passing run:
// the trace archive and recorded videos. Policies set to always keep
// their artifacts.
func (m *Manager) CleanupOnSuccess() error {
	if m.Config.Trace.Mode == "on_failure" {
		traceDir := filepath.Join(m.RunDir, "trace")
		if err := removeContents(traceDir); err != nil {
			return fmt.Errorf("cleanup trace: %w", err)
		}
	}
	if m.Config.Video.Mode == "on_failure" {
		videoDir := filepath.Join(m.RunDir, "video")
		if err := removeContents(videoDir); err != nil {
			return fmt.Errorf("cleanup video: %w", err)
		}
	}
	return nil
}

func removeContents(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeName(name string) string {
	s := unsafeNameRe.ReplaceAllString(name, "-")
	s = dashRunRe.ReplaceAllString(s, "-")
	return strings.Trim(strings.ToLower(s), "-")
}

// lineLog is a timestamped line writer flushed at every write so a crash
// mid-run loses nothing.
type lineLog struct {
	file   *os.File
	writer *bufio.Writer
}

func newLineLog(path string) (*lineLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &lineLog{file: f, writer: bufio.NewWriter(f)}, nil
}

func (l *lineLog) Writef(line string) {
	fmt.Fprintf(l.writer, "%s %s\n", time.Now().Format("15:04:05.000"), line)
	l.writer.Flush()
}

func (l *lineLog) Close() error {
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}
