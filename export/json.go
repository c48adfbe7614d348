package export

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/hirevox/hirevox/errors"
)

// WriteJSON writes a snapshot as an array of objects, one per row, with
// keys in column order. encoding/json loses map ordering, so objects are
// assembled by hand.
func WriteJSON(w io.Writer, snap *Snapshot) error {
	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, row := range snap.Rows {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString("  {")
		for j, col := range snap.Columns {
			if j > 0 {
				buf.WriteString(", ")
			}
			key, err := json.Marshal(col)
			if err != nil {
				return errors.Wrap(err, "marshal column name")
			}
			val, err := json.Marshal(row[j])
			if err != nil {
				return errors.Wrap(err, "marshal cell")
			}
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(val)
		}
		buf.WriteString("}")
	}
	buf.WriteString("\n]\n")

	_, err := w.Write(buf.Bytes())
	return errors.Wrap(err, "write json")
}
