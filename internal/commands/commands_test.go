package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanrisk/internal/risk"
)

const applicationsCSV = `Age,Income,Credit_Score,Debt_to_Income_Ratio,Education_Level,Loan_Purpose,Loan Amount,Risk_Rating
25,30000,580,0.6,High School,Car,"$40,000",8
35,55000,650,0.4,Bachelor,Home,25000,6
,70000,700,0.3,Master,Home,20000,5
45,80000,720,0.25,Master,Business,"$15,000",4
55,120000,780,0.1,PhD,Education,8000,2
30,40000,610,0.5,Bachelor,Car,"$30,000",7
50,95000,750,0.2,PhD,Home,12000,3
`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("DB_PATH", filepath.Join(dir, "data", "loanrisk.db"))
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("INBOX_DIR", filepath.Join(dir, "inbox"))
	t.Setenv("INBOX_INTERVAL_SEC", "30")
	t.Setenv("SCORING_POLICY", "correlation")
	t.Setenv("REFERENCE_FILES", "")
	t.Setenv("REFERENCE_FROM_DB", "false")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_TEXTFILE", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apps.csv"), []byte(applicationsCSV), 0o644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestProcessWritesCSVToStdout(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "process", "--input", "apps.csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "ID,Age,Income,Credit_Score,Debt_to_Income_Ratio,Education_Level,Loan_Purpose,Loan_Amount,Risk Rating", lines[0])
	assert.Equal(t, "1,25,34110.00,580,0.6,High School,Car,40000.00,8", lines[1])
	assert.True(t, strings.HasPrefix(lines[3], "4,45,"), "IDs survive filtering: %s", lines[3])
}

func TestProcessStoreRunsAndExport(t *testing.T) {
	dir := setupEnv(t)
	metricsPath := filepath.Join(dir, "loanrisk.prom")
	t.Setenv("METRICS_TEXTFILE", metricsPath)

	out, err := run(t, "process", "--input", "apps.csv", "--store", "--out-xlsx", filepath.Join("out", "clean.xlsx"))
	require.NoError(t, err)
	assert.Contains(t, out, "loaded=7 retained=6 failures=0")
	assert.FileExists(t, filepath.Join(dir, "out", "clean.xlsx"))
	assert.FileExists(t, metricsPath)

	out, err = run(t, "runs", "--limit", "5")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.NotEmpty(t, fields)
	runID := fields[0]
	assert.Contains(t, out, "apps.csv")

	exported := filepath.Join(dir, "out", "run.csv")
	out, err = run(t, "export", "--run-id", runID, "--out", exported)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 6 rows")

	blob, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(blob), "4,45,90960.00,720,0.25,Master,Business,15000.00,4")

	_, err = run(t, "export", "--run-id", "nope", "--out", exported)
	assert.Error(t, err)
}

func TestExportKeepsRowsWithUnconvertedAmounts(t *testing.T) {
	dir := setupEnv(t)
	input := "Age,Income,Credit_Score,Debt_to_Income_Ratio,Education_Level,Loan_Purpose,Loan Amount,Risk_Rating\n" +
		"25,30000,580,0.6,High School,Car,1000,8\n" +
		"35,55000,650,0.4,Bachelor,Home,garbage,6\n" +
		"45,80000,720,0.25,Master,Business,$abc,4\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "messy.csv"), []byte(input), 0o644))

	direct, err := run(t, "process", "--input", "messy.csv")
	require.NoError(t, err)

	_, err = run(t, "process", "--input", "messy.csv", "--store")
	require.NoError(t, err)
	out, err := run(t, "runs")
	require.NoError(t, err)
	runID := strings.Fields(out)[0]

	exported := filepath.Join(dir, "out", "messy.csv")
	_, err = run(t, "export", "--run-id", runID, "--out", exported)
	require.NoError(t, err)

	blob, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, direct, string(blob))
	assert.Len(t, strings.Split(strings.TrimSpace(string(blob)), "\n"), 4)
	assert.Contains(t, string(blob), "2,35,62535.00,650,0.4,Bachelor,Home,garbage,6")
}

func TestScoreStoredApplication(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "process", "--input", "apps.csv", "--store", "--out-csv", filepath.Join("out", "clean.csv"))
	require.NoError(t, err)
	out, err := run(t, "runs")
	require.NoError(t, err)
	runID := strings.Fields(out)[0]

	out, err = run(t, "score", "--policy", "fixed", "--run-id", runID, "--id", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "risk rating: 1 (Medium Risk) policy=fixed")

	_, err = run(t, "score", "--policy", "fixed", "--run-id", runID, "--id", "3")
	assert.Error(t, err)
}

func TestScoreFixed(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "score", "--policy", "fixed", "--age", "100", "--income", "0", "--credit-score", "300", "--dti", "1", "--loan-amount", "500000")
	require.NoError(t, err)
	assert.Contains(t, out, "risk rating: 2 (High Risk) policy=fixed")
}

func TestScoreCorrelationFromFiles(t *testing.T) {
	setupEnv(t)
	t.Setenv("REFERENCE_FILES", "apps.csv")

	out, err := run(t, "score", "--age", "40", "--income", "60000", "--credit-score", "680", "--dti", "0.35", "--loan-amount", "20000")
	require.NoError(t, err)
	assert.Contains(t, out, "policy=correlation")
	assert.Contains(t, out, "weight Credit_Score=")
}

func TestScoreCorrelationFromDatabase(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "process", "--input", "apps.csv", "--store", "--out-csv", filepath.Join("out", "clean.csv"))
	require.NoError(t, err)

	t.Setenv("REFERENCE_FROM_DB", "true")
	out, err := run(t, "score", "--age", "40", "--income", "60000", "--credit-score", "680", "--dti", "0.35", "--loan-amount", "20000")
	require.NoError(t, err)
	assert.Contains(t, out, "policy=correlation")
}

func TestScoreErrors(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "score")
	assert.True(t, errors.Is(err, risk.ErrDataUnavailable))

	_, err = run(t, "score", "--policy", "fixed", "--dti", "30")
	assert.True(t, errors.Is(err, risk.ErrValidation))

	_, err = run(t, "process")
	assert.Error(t, err)
}
