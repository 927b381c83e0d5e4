package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tracesync/internal/ir"
)

func TestStepStatus(t *testing.T) {
	tests := []struct {
		raw     string
		retries int
		want    ir.Status
	}{
		{"passed", 0, ir.StatusPassed},
		{"PASSED", 0, ir.StatusPassed},
		{"passed", 2, ir.StatusWarning},
		{"failed", 0, ir.StatusFailed},
		{"timedOut", 0, ir.StatusFailed},
		{"flaky", 0, ir.StatusWarning},
		{"skipped", 0, ir.StatusInfo},
		{"", 0, ir.StatusNone},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, stepStatus(tt.raw, tt.retries))
		})
	}
}

func TestLogStatus(t *testing.T) {
	assert.Equal(t, ir.StatusFailed, logStatus("error"))
	assert.Equal(t, ir.StatusWarning, logStatus("warn"))
	assert.Equal(t, ir.StatusWarning, logStatus("Warning"))
	assert.Equal(t, ir.StatusInfo, logStatus("log"))
	assert.Equal(t, ir.StatusInfo, logStatus(""))
}

func TestNetworkStatus(t *testing.T) {
	assert.Equal(t, ir.StatusPassed, networkStatus(200))
	assert.Equal(t, ir.StatusPassed, networkStatus(204))
	assert.Equal(t, ir.StatusInfo, networkStatus(304))
	assert.Equal(t, ir.StatusFailed, networkStatus(404))
	assert.Equal(t, ir.StatusFailed, networkStatus(503))
	assert.Equal(t, ir.StatusFailed, networkStatus(0), "no response")
}

func TestStepTitleFallbacks(t *testing.T) {
	assert.Equal(t, "Log in", stepTitle(ir.StepRecord{Name: " Log in "}))
	assert.Equal(t, "click #submit", stepTitle(ir.StepRecord{Action: "click", Selector: "#submit"}))
	assert.Equal(t, "Step 7", stepTitle(ir.StepRecord{Index: 7}))
}

func TestStepDescription(t *testing.T) {
	d := stepDescription(ir.StepRecord{
		Name:         "submit",
		Action:       "click",
		Selector:     "#go",
		ErrorMessage: "Timeout 5000ms exceeded",
		RetryCount:   1,
	})
	assert.Equal(t, "click #go\nTimeout 5000ms exceeded\nretried 1 time(s)", d)
}

func TestLogTitleFirstLine(t *testing.T) {
	assert.Equal(t, "boom", logTitle(ir.ConsoleLogRecord{Message: "boom\n  at foo.js:1"}))
	assert.Equal(t, "console.warn", logTitle(ir.ConsoleLogRecord{Level: "WARN"}))
}

func TestNetworkTitleUsesPath(t *testing.T) {
	n := ir.NetworkLogRecord{Method: "post", URL: "https://api.example.com/v1/login?x=1", Status: 401}
	assert.Equal(t, "POST /v1/login", networkTitle(n))
	assert.Equal(t, "POST https://api.example.com/v1/login?x=1 -> 401", networkDescription(n))

	assert.Equal(t, "GET https://x/ -> no response", networkDescription(ir.NetworkLogRecord{URL: "https://x/"}))
}

func TestMarkerDescription(t *testing.T) {
	m := ir.PerformanceMarkerRecord{Value: ir.Float(2.5), Unit: "s", DurationMs: ir.Int(12)}
	assert.Equal(t, "2.5 s, 12ms", markerDescription(m))
	assert.Equal(t, "", markerDescription(ir.PerformanceMarkerRecord{}))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", 200)
	got := truncate(long)
	assert.Equal(t, maxTitleRunes, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "short", truncate("short"))
}
