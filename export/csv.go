package export

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/hirevox/hirevox/enrich"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/logger"
	"github.com/hirevox/hirevox/roster"
)

// utf8BOM makes Excel open the file as UTF-8; the recruiting teams this
// exports for live in spreadsheets.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LocalityColumn is the header of the inserted locality column.
const LocalityColumn = "归属地"

// WriteCSV writes a snapshot as UTF-8 CSV with a leading BOM.
func WriteCSV(w io.Writer, snap *Snapshot) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return errors.Wrap(err, "write BOM")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(snap.Columns); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, row := range snap.Rows {
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// EnrichCSV reads an arbitrary CSV, looks up the locality for the given
// phone column, and writes the file back with a locality column inserted
// directly after it. Column order is otherwise preserved; rows whose
// phone does not parse get an empty locality cell.
func EnrichCSV(ctx context.Context, lookup enrich.Lookup, inPath, outPath, phoneColumn string) (int, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", inPath)
	}
	defer in.Close()

	header, rows, err := readCSV(in)
	if err != nil {
		return 0, err
	}

	phoneIdx := slices.Index(header, phoneColumn)
	if phoneIdx < 0 {
		return 0, errors.NewValidationError(
			"column %q not found (available: %s)", phoneColumn, strings.Join(header, ", "))
	}

	localityIdx := slices.Index(header, LocalityColumn)
	if localityIdx < 0 {
		localityIdx = phoneIdx + 1
		header = slices.Insert(header, localityIdx, LocalityColumn)
		for i := range rows {
			rows[i] = slices.Insert(rows[i], localityIdx, "")
		}
	}

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrap(errors.ErrCancelled, "csv enrichment stopped")
		}
		rows[i][localityIdx] = localityFor(ctx, lookup, rows[i][phoneIdx])
	}

	out, err := os.Create(outPath)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", outPath)
	}
	defer out.Close()

	if err := writeRawCSV(out, header, rows); err != nil {
		return 0, err
	}
	logger.Infow("csv enriched", "input", inPath, "output", outPath, "rows", len(rows))
	return len(rows), nil
}

// localityFor resolves one cell. Unparseable or unknown numbers yield an
// empty cell rather than failing the file.
func localityFor(ctx context.Context, lookup enrich.Lookup, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	normalized, err := roster.NormalizePhone(raw)
	if err != nil {
		return ""
	}
	locality, err := lookup.Locality(ctx, normalized)
	if err != nil {
		return ""
	}
	return locality
}

// readCSV loads a whole file, tolerating a leading BOM and ragged rows
// (short rows are padded to the header width).
func readCSV(r io.Reader) ([]string, [][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read csv")
	}
	data = trimBOM(data)

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.FieldsPerRecord = -1
	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse csv")
	}
	if len(all) == 0 {
		return nil, nil, errors.NewValidationError("csv file is empty")
	}

	header := all[0]
	rows := all[1:]
	for i := range rows {
		for len(rows[i]) < len(header) {
			rows[i] = append(rows[i], "")
		}
	}
	return header, rows, nil
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == utf8BOM[0] && data[1] == utf8BOM[1] && data[2] == utf8BOM[2] {
		return data[3:]
	}
	return data
}

func writeRawCSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return errors.Wrap(err, "write BOM")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
