package output

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codelens/internal/models"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("done %d", 42)
	assert.Contains(t, out.String(), "done 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestDryRunMsg_Enabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = true
	u.DryRunMsg("would create %s", "file")
	assert.Contains(t, errOut.String(), "[DRY-RUN]")
	assert.Contains(t, errOut.String(), "would create file")
}

func TestDryRunMsg_Disabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = false
	u.DryRunMsg("would create %s", "file")
	assert.Empty(t, errOut.String())
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestSeverityColor(t *testing.T) {
	color.NoColor = true
	for _, sev := range []models.Severity{
		models.SeverityNone, models.SeverityInfo, models.SeverityLow,
		models.SeverityMedium, models.SeverityHigh, models.SeverityCritical,
	} {
		assert.Equal(t, string(sev), SeverityColor(sev))
	}
	assert.Equal(t, "odd", SeverityColor("odd"))
}

func TestHealthColor(t *testing.T) {
	assert.NotEmpty(t, HealthColor("healthy"))
	assert.NotEmpty(t, HealthColor("degraded"))
	assert.NotEmpty(t, HealthColor("unhealthy"))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Name", "Chunks"})
	require.NotNil(t, table)

	_ = table.Append([]string{"guide.md", "12"})
	_ = table.Append([]string{"notes.txt", "3"})
	require.NoError(t, table.Render())

	result := out.String()
	assert.Contains(t, result, "guide.md")
	assert.Contains(t, result, "notes.txt")
}

func TestReview(t *testing.T) {
	color.NoColor = true
	u, out, errOut := newTestUI()

	r := &models.AggregatedReview{
		SeverityLevel:       models.SeverityHigh,
		RequiresHumanReview: true,
		Summary:             models.Summary{Language: "python", CodeLength: 13, TotalIssues: 1},
		Explanations:        []models.Explanation{{Topic: "Injection", Explanation: "Bind parameters."}},
		Warnings:            []string{"style analysis failed: timeout"},
	}
	r.SetFindings(models.AspectSecurity, []models.Finding{
		{Severity: models.SeverityHigh, Description: "query built from input", Location: "line 3"},
	})

	u.Review(r)

	assert.Contains(t, out.String(), "python  13 chars  1 issue(s)  severity high")
	assert.Contains(t, out.String(), "query built from input")
	assert.Contains(t, out.String(), "Security")
	assert.Contains(t, out.String(), "Injection: Bind parameters.")
	assert.Contains(t, errOut.String(), "Human review recommended")
	assert.Contains(t, errOut.String(), "style analysis failed")
}

func TestReview_NoFindings(t *testing.T) {
	u, out, _ := newTestUI()
	u.Review(&models.AggregatedReview{SeverityLevel: models.SeverityNone, Summary: models.Summary{Language: "go"}})
	assert.Contains(t, out.String(), "No issues found")
}
