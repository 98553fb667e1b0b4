package google

import (
	"fmt"
	"strconv"

	"fonreal/internal/core"
)

// parseValues converts a Sheets values matrix, header first, into a table.
func parseValues(values [][]interface{}) (*core.Table, error) {
	if len(values) == 0 {
		return nil, core.ErrEmptyDataset
	}
	header := toStrings(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, v := range values[1:] {
		rows = append(rows, toStrings(v))
	}
	return core.BuildTable(header, rows)
}

// toStrings renders cells as text. Unformatted numeric cells arrive as
// float64; whole numbers print without a decimal point so years stay "2001".
func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		switch v := cell.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = v
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[i] = strconv.FormatBool(v)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
