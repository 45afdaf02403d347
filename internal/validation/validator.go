// Package validation decides whether an incoming trip file may be loaded.
//
// Checks run in a fixed order and stop at the first failing rule class:
// load, required columns, null/blank cells, duplicates, status values,
// trip_date format, trip_date not in the future. The returned error wraps one
// of the package sentinels (ErrEmptyInput, ErrSchema, ...).
package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkordes/tripfeed/internal/csvfile"
	"github.com/pkordes/tripfeed/internal/domain"
)

// PreviewRows is the number of leading data rows kept in Result.Preview.
const PreviewRows = 3

// Result is the outcome of a successful validation.
type Result struct {
	// Rows are the validated trips in file order.
	Rows []domain.Trip
	// Columns is the header as read, including extra columns.
	Columns []string
	// Preview holds the raw text of the first PreviewRows rows.
	Preview [][]string
}

// Validator runs the fixed sequence of file checks.
// The zero value is not usable; construct with New.
type Validator struct {
	now     func() time.Time
	loc     *time.Location
	log     *slog.Logger
	preview io.Writer
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock sets the time source used by the future-date check.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithLocation sets the zone whose clock trip_date values are read against in
// the future-date check. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(v *Validator) { v.loc = loc }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.log = l }
}

// WithPreviewWriter makes Validate print the preview table to w after a
// successful run. Write errors are logged and otherwise ignored.
func WithPreviewWriter(w io.Writer) Option {
	return func(v *Validator) { v.preview = w }
}

// New returns a Validator with the given options applied.
func New(opts ...Option) *Validator {
	v := &Validator{
		now: time.Now,
		loc: time.Local,
		log: slog.Default(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate reads the file at path and runs every check against it.
func (v *Validator) Validate(ctx context.Context, path string) (Result, error) {
	tbl, err := csvfile.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("validation.Validator.Validate: %w", loadError(err))
	}
	return v.ValidateTable(ctx, tbl)
}

// ValidateReader is Validate for an already-open input.
func (v *Validator) ValidateReader(ctx context.Context, r io.Reader) (Result, error) {
	tbl, err := csvfile.Read(r)
	if err != nil {
		return Result{}, fmt.Errorf("validation.Validator.ValidateReader: %w", loadError(err))
	}
	return v.ValidateTable(ctx, tbl)
}

// ValidateTable runs the checks that follow loading against a parsed table.
func (v *Validator) ValidateTable(ctx context.Context, tbl *csvfile.Table) (Result, error) {
	if len(tbl.Rows) == 0 {
		return Result{}, fmt.Errorf("%w: header present but no data rows", ErrEmptyInput)
	}

	checks := []func(*csvfile.Table) error{
		checkColumns,
		checkNullsAndBlanks,
		checkDuplicates,
		checkStatus,
		checkDateFormat,
		v.checkDateLogic,
	}
	for _, check := range checks {
		if err := check(tbl); err != nil {
			return Result{}, err
		}
	}

	res := Result{
		Rows:    v.normalize(tbl),
		Columns: tbl.Header,
		Preview: preview(tbl),
	}
	v.showPreview(ctx, res)

	v.log.InfoContext(ctx, "csv validation passed", "rows", len(res.Rows), "columns", len(res.Columns))
	return res, nil
}

// loadError maps csvfile errors to the load-step rule classes.
func loadError(err error) error {
	switch {
	case errors.Is(err, csvfile.ErrNoHeader):
		return fmt.Errorf("%w: %v", ErrEmptyInput, err)
	case errors.Is(err, csvfile.ErrMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	default:
		return err
	}
}

func checkColumns(tbl *csvfile.Table) error {
	var missing []string
	for _, f := range domain.RequiredFields {
		if _, ok := tbl.Column(f); !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// checkNullsAndBlanks inspects every column present, not only the required ones.
func checkNullsAndBlanks(tbl *csvfile.Table) error {
	for _, r := range tbl.Rows {
		for i, c := range r.Cells {
			if c.Null {
				return fmt.Errorf("%w: line %d column %q is null", ErrNullOrBlank, r.Line, tbl.Header[i])
			}
			if strings.TrimSpace(c.Text) == "" {
				return fmt.Errorf("%w: line %d column %q is blank", ErrNullOrBlank, r.Line, tbl.Header[i])
			}
		}
	}
	return nil
}

func checkDuplicates(tbl *csvfile.Table) error {
	idCol, _ := tbl.Column(domain.FieldTripID)

	var (
		dupErr  DuplicateError
		seenID  = make(map[string]int, len(tbl.Rows))
		seenRow = make(map[string]struct{}, len(tbl.Rows))
	)
	for _, r := range tbl.Rows {
		id := r.Cells[idCol].Text
		seenID[id]++
		if seenID[id] == 2 {
			dupErr.TripIDs = append(dupErr.TripIDs, id)
		}

		key := rowKey(r)
		if _, ok := seenRow[key]; ok {
			dupErr.RowLines = append(dupErr.RowLines, r.Line)
			continue
		}
		seenRow[key] = struct{}{}
	}

	if dupErr.IDCollision() || dupErr.RowCollision() {
		return &dupErr
	}
	return nil
}

// rowKey encodes all cells unambiguously by length-prefixing each one.
func rowKey(r csvfile.Row) string {
	var b strings.Builder
	for _, c := range r.Cells {
		b.WriteString(strconv.Itoa(len(c.Text)))
		b.WriteByte(':')
		b.WriteString(c.Text)
	}
	return b.String()
}

func checkStatus(tbl *csvfile.Table) error {
	col, _ := tbl.Column(domain.FieldStatus)
	for _, r := range tbl.Rows {
		if _, ok := domain.ParseStatus(r.Cells[col].Text); !ok {
			return fmt.Errorf("%w: line %d: %q", ErrInvalidStatus, r.Line, r.Cells[col].Text)
		}
	}
	return nil
}

func checkDateFormat(tbl *csvfile.Table) error {
	col, _ := tbl.Column(domain.FieldTripDate)
	for _, r := range tbl.Rows {
		if !domain.TripDatePattern.MatchString(r.Cells[col].Text) {
			return fmt.Errorf("%w: line %d: %q", ErrDateFormat, r.Line, r.Cells[col].Text)
		}
	}
	return nil
}

func (v *Validator) checkDateLogic(tbl *csvfile.Table) error {
	col, _ := tbl.Column(domain.FieldTripDate)
	now := domain.WallClock(v.now(), v.loc)
	for _, r := range tbl.Rows {
		raw := r.Cells[col].Text
		ts, err := domain.ParseTripDate(raw)
		if err != nil {
			// Matches the pattern but is not a calendar date, e.g. month 13.
			return fmt.Errorf("%w: line %d: %q: %v", ErrDateFormat, r.Line, raw, err)
		}
		if ts.After(now) {
			return fmt.Errorf("%w: line %d: %s is after %s",
				ErrFutureDate, r.Line, raw, now.Format(domain.TripDateLayout))
		}
	}
	return nil
}

// normalize converts rows that passed every check into trips.
func (v *Validator) normalize(tbl *csvfile.Table) []domain.Trip {
	cols := make(map[string]int, len(domain.RequiredFields))
	for _, f := range domain.RequiredFields {
		cols[f], _ = tbl.Column(f)
	}

	trips := make([]domain.Trip, len(tbl.Rows))
	for i, r := range tbl.Rows {
		status, _ := domain.ParseStatus(r.Cells[cols[domain.FieldStatus]].Text)
		// Parse cannot fail here: checkDateLogic already parsed every value.
		ts, _ := domain.ParseTripDate(r.Cells[cols[domain.FieldTripDate]].Text)
		trips[i] = domain.Trip{
			TripID:   r.Cells[cols[domain.FieldTripID]].Text,
			ClientID: r.Cells[cols[domain.FieldClientID]].Text,
			DriverID: r.Cells[cols[domain.FieldDriverID]].Text,
			TripDate: ts,
			Status:   status,
		}
	}
	return trips
}

func preview(tbl *csvfile.Table) [][]string {
	n := min(len(tbl.Rows), PreviewRows)
	out := make([][]string, n)
	for i := range n {
		out[i] = tbl.Rows[i].Texts()
	}
	return out
}

// showPreview renders the preview as an aligned table. It never fails the
// validation: rendering problems are logged as warnings.
func (v *Validator) showPreview(ctx context.Context, res Result) {
	var buf bytes.Buffer
	if err := renderPreview(&buf, res.Columns, res.Preview); err != nil {
		v.log.WarnContext(ctx, "render preview", "error", err)
		return
	}
	v.log.DebugContext(ctx, "csv preview", "rows", buf.String())

	if v.preview == nil {
		return
	}
	if _, err := v.preview.Write(buf.Bytes()); err != nil {
		v.log.WarnContext(ctx, "write preview", "error", err)
	}
}

func renderPreview(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(r, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
