package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"wallet/internal/core"
	"wallet/internal/log"
	ports "wallet/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabs          map[core.Variant]string
	logger        *log.Logger
}

var (
	_ ports.RowWriter = (*Client)(nil)
	_ ports.RowReader = (*Client)(nil)
)

// Config selects the spreadsheet, its tabs and the service account.
type Config struct {
	SpreadsheetID   string
	IncomeSheet     string
	ExpenseSheet    string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with service account
// credentials from cfg. Extra options are passed to the Sheets service.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	income, expense := strings.TrimSpace(cfg.IncomeSheet), strings.TrimSpace(cfg.ExpenseSheet)
	if income == "" {
		income = "Income"
	}
	if expense == "" {
		expense = "Expenses"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		tabs:          map[core.Variant]string{core.Income: income, core.Expense: expense},
		logger:        log.NewComponentLogger(log.ComponentSheets),
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read application credentials: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

func (c *Client) tab(v core.Variant) (string, error) {
	name, ok := c.tabs[v]
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidVariant, v)
	}
	return name, nil
}

// EnsureHeader writes the column titles to row 1 of both tabs when empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	for _, v := range []core.Variant{core.Income, core.Expense} {
		tab, _ := c.tab(v)
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, tab+"!A1:F1").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("read header of %s: %w", tab, err)
		}
		if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
			continue
		}
		vr := &gsheet.ValueRange{Values: [][]any{header}}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, tab+"!A1:F1", vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write header of %s: %w", tab, err)
		}
		c.logger.InfoContext(ctx, "Wrote sheet header", "sheet", tab)
	}
	return nil
}

// AppendEntry implements sheets.RowWriter. The ID column is checked first so
// a redelivered sync message does not duplicate the row.
func (c *Client) AppendEntry(ctx context.Context, e core.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if e.ID <= 0 {
		return "", fmt.Errorf("entry has no id")
	}
	tab, err := c.tab(e.Variant)
	if err != nil {
		return "", err
	}

	ids, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, tab+"!F:F").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read ids of %s: %w", tab, err)
	}
	if row := findID(ids.Values, e.ID); row > 0 {
		ref := fmt.Sprintf("%s!A%d:F%d", tab, row, row)
		c.logger.InfoContext(ctx, "Entry already in sheet", log.FieldEntryID, e.ID, log.FieldSheetsRef, ref)
		return ref, nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{entryRow(e)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, tab+"!A:F", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", tab, err)
	}

	ref := tab
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// ReadEntries implements sheets.RowReader.
func (c *Client) ReadEntries(ctx context.Context, v core.Variant) ([]core.Entry, error) {
	tab, err := c.tab(v)
	if err != nil {
		return nil, err
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, tab+"!A:F").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tab, err)
	}
	return parseRows(resp.Values, v), nil
}
