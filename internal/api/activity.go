package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nerrad567/gray-logic-hotel/internal/breaker"
)

const (
	// exportPageSize is the page size used while collecting export rows.
	exportPageSize = 1000
	// maxExportRows caps one spreadsheet.
	maxExportRows = 10000

	activitySheet = "Activity"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var activityHeaders = []string{
	"Time (UTC)", "Breaker ID", "Action", "Origin", "Outcome",
	"User ID", "Room Before", "Room After", "Response (ms)", "Queue Item", "Error",
}

var activityColumnWidths = []float64{22, 38, 12, 10, 10, 38, 14, 14, 14, 38, 50}

// parseActivityFilter reads breaker_id, action, origin, outcome, since and
// until (RFC 3339) plus limit/offset.
func parseActivityFilter(r *http.Request) (breaker.ActivityFilter, error) {
	q := r.URL.Query()
	filter := breaker.ActivityFilter{BreakerID: q.Get("breaker_id")}

	var err error
	if v := q.Get("action"); v != "" {
		if filter.Action, err = breaker.ParseAction(v); err != nil {
			return filter, err
		}
	}
	if v := q.Get("origin"); v != "" {
		if filter.Origin, err = breaker.ParseTriggerOrigin(v); err != nil {
			return filter, err
		}
	}
	if v := q.Get("outcome"); v != "" {
		if filter.Outcome, err = breaker.ParseOutcome(v); err != nil {
			return filter, err
		}
	}
	if filter.Since, err = optionalTime(q, "since"); err != nil {
		return filter, err
	}
	if filter.Until, err = optionalTime(q, "until"); err != nil {
		return filter, err
	}
	filter.Limit, filter.Offset = pageParams(r)
	return filter, nil
}

func optionalTime(q url.Values, key string) (*time.Time, error) {
	t, err := parseTimeParam(q.Get(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC 3339", breaker.ErrInvalidValue, key)
	}
	if t.IsZero() {
		return nil, nil
	}
	return &t, nil
}

// handleListActivity returns paginated activity entries, newest first.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	filter, err := parseActivityFilter(r)
	if err != nil {
		s.writeServiceError(w, "list activity", err)
		return
	}

	entries, total, err := s.breakers.Activity().List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, "list activity", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activity": entries,
		"total":    total,
		"offset":   filter.Offset,
	})
}

// handleExportActivity streams the filtered activity log as an xlsx file.
// limit and offset are ignored; at most maxExportRows rows are written.
func (s *Server) handleExportActivity(w http.ResponseWriter, r *http.Request) {
	filter, err := parseActivityFilter(r)
	if err != nil {
		s.writeServiceError(w, "export activity", err)
		return
	}

	var entries []breaker.ActivityEntry
	filter.Limit, filter.Offset = exportPageSize, 0
	for len(entries) < maxExportRows {
		page, total, err := s.breakers.Activity().List(r.Context(), filter)
		if err != nil {
			s.writeServiceError(w, "export activity", err)
			return
		}
		entries = append(entries, page...)
		if len(page) < exportPageSize || len(entries) >= total {
			break
		}
		filter.Offset += len(page)
	}
	if len(entries) > maxExportRows {
		entries = entries[:maxExportRows]
	}

	data, err := buildActivityWorkbook(entries)
	if err != nil {
		s.writeServiceError(w, "export activity", err)
		return
	}

	filename := fmt.Sprintf("breaker-activity-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client may have gone away
}

// buildActivityWorkbook renders entries into a single-sheet workbook.
func buildActivityWorkbook(entries []breaker.ActivityEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory file

	idx, err := f.NewSheet(activitySheet)
	if err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("removing default sheet: %w", err)
	}
	f.SetActiveSheet(idx)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	for i, header := range activityHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(activitySheet, cell, header); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
		if err := f.SetCellStyle(activitySheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("styling header: %w", err)
		}

		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(activitySheet, col, col, activityColumnWidths[i]); err != nil {
			return nil, fmt.Errorf("setting column width: %w", err)
		}
	}

	for n, e := range entries {
		row := []any{
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			e.BreakerID,
			string(e.Action),
			string(e.Origin),
			string(e.Outcome),
			e.UserID,
			string(e.RoomStatusBefore),
			string(e.RoomStatusAfter),
			e.ResponseMs,
			e.QueueItemID,
			e.Error,
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return nil, fmt.Errorf("row cell: %w", err)
		}
		if err := f.SetSheetRow(activitySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", n+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
