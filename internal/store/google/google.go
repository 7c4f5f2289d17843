package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"abonnements/internal/core"
	"abonnements/internal/store"
	"abonnements/internal/store/tabular"
)

// Ensure interface conformance
var _ store.Gateway = (*Client)(nil)

// readRange covers far more columns than the ledger uses so reordered or
// annotated sheets still decode.
const readRange = "A:Z"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Config selects the spreadsheet and the service-account credential.
// CredentialsJSON takes precedence over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// NewFromConfig authenticates with the service account and binds the client
// to one worksheet. An empty sheet name selects the first worksheet.
func NewFromConfig(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: sheets service: %w", core.ErrStoreUnavailable, err)
	}
	c := New(svc, strings.TrimSpace(cfg.SpreadsheetID), strings.TrimSpace(cfg.SheetName))
	if c.sheetName == "" {
		title, err := c.firstSheetTitle(ctx)
		if err != nil {
			return nil, err
		}
		c.sheetName = title
	}
	return c, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", cfg.CredentialsFile)
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// a1 quotes the sheet title so names with spaces or punctuation are valid.
func (c *Client) a1(cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(c.sheetName, "'", "''"), cells)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStoreUnavailable, op, err)
}

// grid is one read of the worksheet. offset is 1 when the first row is a
// header and 0 for legacy sheets that start directly with data.
type grid struct {
	rows   [][]string
	layout tabular.Layout
	offset int
}

func (g grid) dataRows() [][]string {
	if len(g.rows) <= g.offset {
		return nil
	}
	return g.rows[g.offset:]
}

func (c *Client) readGrid(ctx context.Context) (grid, error) {
	if c.svc == nil {
		return grid{}, unavailable("read", errors.New("sheets service not initialized"))
	}
	rng := c.a1(readRange)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return grid{}, unavailable("read "+rng, err)
	}
	g := grid{layout: tabular.DefaultLayout()}
	for _, row := range resp.Values {
		g.rows = append(g.rows, tabular.ToStrings(row))
	}
	if len(g.rows) == 0 {
		return g, nil
	}
	if layout, err := tabular.ParseHeader(g.rows[0]); err == nil {
		g.layout = layout
		g.offset = 1
	} else {
		slog.WarnContext(ctx, "Ledger sheet has no recognizable header, reading all rows as data",
			"sheet", c.sheetName, "error", err)
	}
	return g, nil
}

// ListRows implements store.RowLister
func (c *Client) ListRows(ctx context.Context) ([]core.Row, error) {
	g, err := c.readGrid(ctx)
	if err != nil {
		return nil, err
	}
	rows := g.layout.Decode(g.dataRows())
	slog.DebugContext(ctx, "Read ledger sheet", "sheet", c.sheetName, "rows", len(rows))
	return rows, nil
}

// AppendRow implements store.RowAppender. Values are sent RAW so the
// spreadsheet stores the canonical text instead of re-parsing it with its
// own locale.
func (c *Client) AppendRow(ctx context.Context, r core.Row) (string, error) {
	g, err := c.readGrid(ctx)
	if err != nil {
		return "", err
	}
	if len(g.rows) == 0 {
		if err := c.writeHeader(ctx); err != nil {
			return "", err
		}
	}

	cells := g.layout.Encode(r)
	values := make([]any, len(cells))
	for i, v := range cells {
		values[i] = v
	}
	rng := c.a1("A1")
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{values}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", unavailable("append to "+c.sheetName, err)
	}
	ref := c.sheetName
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	header := make([]any, len(tabular.Header))
	for i, h := range tabular.Header {
		header[i] = h
	}
	rng := c.a1("A1:D1")
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return unavailable("write header", err)
	}
	return nil
}

// FindAndDelete implements store.RowDeleter
func (c *Client) FindAndDelete(ctx context.Context, name string) error {
	g, err := c.readGrid(ctx)
	if err != nil {
		return err
	}
	col := g.layout.NameColumn()
	for i, row := range g.dataRows() {
		if col < len(row) && store.MatchName(row[col], name) {
			return c.deleteGridRow(ctx, g.offset+i)
		}
	}
	return fmt.Errorf("%w: %q", core.ErrRecordNotFound, name)
}

// DeleteAt implements store.RowDeleter
func (c *Client) DeleteAt(ctx context.Context, index int) error {
	g, err := c.readGrid(ctx)
	if err != nil {
		return err
	}
	if index < 1 || index > len(g.dataRows()) {
		return fmt.Errorf("%w: row %d", core.ErrRecordNotFound, index)
	}
	return c.deleteGridRow(ctx, g.offset+index-1)
}

// deleteGridRow removes the 0-based grid row.
func (c *Client) deleteGridRow(ctx context.Context, gridRow int) error {
	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(gridRow),
					EndIndex:        int64(gridRow + 1),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return unavailable("delete row", err)
	}
	slog.InfoContext(ctx, "Deleted ledger row", "sheet", c.sheetName, "grid_row", gridRow+1)
	return nil
}

func (c *Client) sheetProperties(ctx context.Context) ([]*gsheet.SheetProperties, error) {
	if c.svc == nil {
		return nil, unavailable("read metadata", errors.New("sheets service not initialized"))
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, unavailable("read metadata", err)
	}
	props := make([]*gsheet.SheetProperties, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh != nil && sh.Properties != nil {
			props = append(props, sh.Properties)
		}
	}
	return props, nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	props, err := c.sheetProperties(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range props {
		if p.Title == c.sheetName {
			return p.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: worksheet %q not found", core.ErrStoreUnavailable, c.sheetName)
}

func (c *Client) firstSheetTitle(ctx context.Context) (string, error) {
	props, err := c.sheetProperties(ctx)
	if err != nil {
		return "", err
	}
	if len(props) == 0 {
		return "", fmt.Errorf("%w: spreadsheet has no worksheets", core.ErrStoreUnavailable)
	}
	return props[0].Title, nil
}
