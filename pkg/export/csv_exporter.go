package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/noah-isme/sma-clearance-api/internal/models"
)

// Table is tabular content with an ordered header row.
type Table struct {
	Columns []string
	Rows    [][]string
}

// WriteCSV streams t to w. Rows shorter than the header are padded.
func WriteCSV(w io.Writer, t Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("csv requires at least one column")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = row[i]
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// RenderCSV returns t encoded as CSV bytes.
func RenderCSV(t Table) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := WriteCSV(buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var auditColumns = []string{"created_at", "action", "request_id", "user_id", "field", "old_value", "new_value", "ip_address"}

// AuditTable flattens audit entries into one row per changed field.
// Entries without a field diff (and empty diffs) produce a single row carrying the raw payload.
func AuditTable(entries []models.AuditLog) Table {
	t := Table{Columns: auditColumns}
	for _, e := range entries {
		prefix := []string{e.CreatedAt.UTC().Format(time.RFC3339), e.Action, deref(e.RequestID), deref(e.UserID)}
		changes, ok := fieldChanges(e)
		if !ok || len(changes) == 0 {
			t.Rows = append(t.Rows, append(append([]string{}, prefix...), "", "", string(e.Changes), e.IPAddress))
			continue
		}
		fields := make([]string, 0, len(changes))
		for f := range changes {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			row := append(append([]string{}, prefix...), f, cell(changes[f].Old), cell(changes[f].New), e.IPAddress)
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

func fieldChanges(e models.AuditLog) (map[string]models.FieldChange, bool) {
	if e.Action != models.AuditActionRequestCreated && e.Action != models.AuditActionRequestUpdated {
		return nil, false
	}
	var changes map[string]models.FieldChange
	if err := json.Unmarshal(e.Changes, &changes); err != nil {
		return nil, false
	}
	return changes, true
}

func cell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
