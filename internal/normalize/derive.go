package normalize

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/tracesync/internal/ir"
)

const maxTitleRunes = 120

// stepStatus maps the runner's status vocabulary onto ir.Status.
// A pass that needed retries is surfaced as a warning (flaky).
func stepStatus(raw string, retries int) ir.Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "passed", "pass", "success", "succeeded", "ok":
		if retries > 0 {
			return ir.StatusWarning
		}
		return ir.StatusPassed
	case "failed", "fail", "failure", "error", "broken", "timedout", "timed_out", "timeout", "interrupted":
		return ir.StatusFailed
	case "warning", "warn", "flaky":
		return ir.StatusWarning
	case "":
		return ir.StatusNone
	default:
		// skipped, pending, running
		return ir.StatusInfo
	}
}

func logStatus(level string) ir.Status {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error", "severe", "fatal", "assert":
		return ir.StatusFailed
	case "warn", "warning":
		return ir.StatusWarning
	default:
		return ir.StatusInfo
	}
}

// networkStatus: status 0 means the request never completed.
func networkStatus(code int) ir.Status {
	switch {
	case code == 0 || code >= 400:
		return ir.StatusFailed
	case code >= 200 && code < 300:
		return ir.StatusPassed
	default:
		return ir.StatusInfo
	}
}

func stepTitle(s ir.StepRecord) string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return truncate(name)
	}
	if t := strings.TrimSpace(s.Action + " " + s.Selector); t != "" {
		return truncate(t)
	}
	return fmt.Sprintf("Step %d", s.Index)
}

func stepDescription(s ir.StepRecord) string {
	var lines []string
	if target := strings.TrimSpace(s.Action + " " + s.Selector); target != "" && target != strings.TrimSpace(s.Name) {
		lines = append(lines, target)
	}
	if s.ErrorMessage != "" {
		lines = append(lines, s.ErrorMessage)
	}
	if s.RetryCount > 0 {
		lines = append(lines, fmt.Sprintf("retried %d time(s)", s.RetryCount))
	}
	return strings.Join(lines, "\n")
}

func logTitle(l ir.ConsoleLogRecord) string {
	msg := strings.TrimSpace(l.Message)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	if msg == "" {
		return "console." + strings.ToLower(l.Level)
	}
	return truncate(msg)
}

func networkMethod(n ir.NetworkLogRecord) string {
	if m := strings.ToUpper(strings.TrimSpace(n.Method)); m != "" {
		return m
	}
	return "GET"
}

func networkTitle(n ir.NetworkLogRecord) string {
	method := networkMethod(n)
	target := n.URL
	if u, err := url.Parse(n.URL); err == nil && u.Path != "" {
		target = u.Path
	}
	return truncate(method + " " + target)
}

func networkDescription(n ir.NetworkLogRecord) string {
	status := "no response"
	if n.Status != 0 {
		status = strconv.Itoa(n.Status)
	}
	return fmt.Sprintf("%s %s -> %s", networkMethod(n), n.URL, status)
}

func markerDescription(m ir.PerformanceMarkerRecord) string {
	var parts []string
	if m.Value != nil {
		v := strconv.FormatFloat(*m.Value, 'f', -1, 64)
		if m.Unit != "" {
			v += " " + m.Unit
		}
		parts = append(parts, v)
	}
	if m.DurationMs != nil {
		parts = append(parts, fmt.Sprintf("%dms", *m.DurationMs))
	}
	return strings.Join(parts, ", ")
}

func joinLines(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimRight(p, "\n"); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxTitleRunes {
		return s
	}
	return string(r[:maxTitleRunes-3]) + "..."
}
