package listener

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"loanrisk/internal/config"
	"loanrisk/internal/connectors"
	dirconnector "loanrisk/internal/connectors/dir"
	"loanrisk/internal/storage"
)

func mkXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	buf := bytes.NewBuffer(nil)
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func testConfig(t *testing.T) config.Config {
	root := t.TempDir()
	return config.Config{
		InboxDir:         filepath.Join(root, "inbox"),
		OutputDir:        filepath.Join(root, "out"),
		InboxIntervalSec: 1,
		InboxFetchMax:    10,
		SourceCurrency:   "EUR",
		TargetCurrency:   "USD",
		EURUSDRate:       "1.137",
		ScoringPolicy:    config.PolicyCorrelation,
	}
}

func TestRunCycleProcessesAndArchives(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	db, err := storage.Open(filepath.Join(t.TempDir(), "loanrisk.db"))
	require.NoError(t, err)
	defer db.Close()

	svc, err := NewService(db, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	good := mkXLSX(t, [][]any{
		{"Age", "Income", "Loan Amount"},
		{30, "1000", "$1,234.56"},
		{"", "2000", "10"},
	})
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InboxDir, "branch-a.xlsx"), good, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InboxDir, "broken.xlsx"), []byte("not a workbook"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InboxDir, "notes.txt"), []byte("skip me"), 0o644))

	res, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, connectors.FetchResult{Fetched: 2, Processed: 1, Failed: 1}, res)

	cleaned, err := os.ReadFile(CleanedPath(cfg.OutputDir, "branch-a.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "ID,Age,Income,Loan_Amount\n1,30,1137.00,1234.56\n", string(cleaned))

	assert.FileExists(t, filepath.Join(cfg.InboxDir, connectors.ProcessedDir, "branch-a.xlsx"))
	assert.FileExists(t, filepath.Join(cfg.InboxDir, connectors.FailedDir, "broken.xlsx"))
	assert.FileExists(t, filepath.Join(cfg.InboxDir, "notes.txt"))
	assert.NoFileExists(t, filepath.Join(cfg.InboxDir, "branch-a.xlsx"))

	runs, err := db.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	last, err := db.GetMetadata(lastCycleKey)
	require.NoError(t, err)
	assert.NotNil(t, last)

	again, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Fetched)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, err := NewService(nil, testConfig(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, svc.Run(ctx))
}

func TestNewInboxConnectorSelectsProvider(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	conn, err := NewInboxConnector(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &dirconnector.Connector{}, conn)

	cfg.InboxProvider = config.ProviderIMAP
	cfg.IMAPHost, cfg.IMAPPort, cfg.IMAPUser, cfg.IMAPPassword = "mail.example.com", 993, "risk", "secret"
	conn, err = NewInboxConnector(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &connectors.MailDrop{}, conn)

	cfg.IMAPPassword = ""
	_, err = NewInboxConnector(ctx, cfg, nil)
	assert.ErrorContains(t, err, "IMAP_PASSWORD")

	cfg.InboxProvider = config.ProviderGmail
	_, err = NewInboxConnector(ctx, cfg, nil)
	assert.ErrorContains(t, err, "GMAIL_CLIENT_ID")

	cfg.InboxProvider = "pop3"
	_, err = NewInboxConnector(ctx, cfg, nil)
	assert.ErrorContains(t, err, "INBOX_PROVIDER")
}

func TestCleanedPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "apps.cleaned.csv"), CleanedPath("out", "apps.xlsx"))
}
