package audit

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/core"
)

var csvHeader = []string{
	"created_at", "session_id", "action", "severity", "file_name", "preset",
	"commentary_id", "old_value", "new_value", "record_count", "ip_address",
}

// WriteCSV writes entries as CSV with a header row.
func WriteCSV(w io.Writer, entries []core.AuditEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, e := range entries {
		commentaryID := ""
		if e.CommentaryID != nil {
			commentaryID = strconv.Itoa(*e.CommentaryID)
		}
		record := []string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.SessionID,
			string(e.Action),
			string(e.Severity),
			e.FileName,
			e.Preset,
			commentaryID,
			e.OldValue,
			e.NewValue,
			strconv.Itoa(e.RecordCount),
			e.IPAddress,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
