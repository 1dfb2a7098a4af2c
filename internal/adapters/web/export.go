package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tablet-tracker/internal/app"
	"tablet-tracker/internal/core"

	"github.com/xuri/excelize/v2"
)

// apiBagReport handles GET /api/reports/bags.
func (h *Handler) apiBagReport(w http.ResponseWriter, r *http.Request) {
	filter, ok := bagReportFilter(w, r)
	if !ok {
		return
	}
	result, err := h.svc.BagReport(r.Context(), actorFromContext(r.Context()), filter)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func bagReportFilter(w http.ResponseWriter, r *http.Request) (core.BagReportFilter, bool) {
	f := core.BagReportFilter{OpenOnly: queryBool(r, "open")}
	var ok bool
	if f.POID, ok = queryInt(w, r, "po_id"); !ok {
		return f, false
	}
	if f.ReceiveID, ok = queryInt(w, r, "receive_id"); !ok {
		return f, false
	}
	if f.TabletTypeID, ok = queryInt(w, r, "tablet_type_id"); !ok {
		return f, false
	}
	return f, true
}

var bagReportHeaders = []string{
	"Receive", "PO", "Box", "Bag", "Tablet Type", "Status", "Label Count",
	"Packaged", "Damaged", "Machine", "Submissions", "Difference", "Variance %", "Classification",
}

func bagReportRows(result *app.BagReportResult) [][]string {
	data := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		data = append(data, []string{
			row.ReceiveName,
			deref(row.PONumber),
			strconv.Itoa(row.BoxNumber),
			strconv.Itoa(row.BagNumber),
			row.TabletType,
			string(row.Status),
			strconv.Itoa(row.LabelCount),
			strconv.Itoa(row.PackagedCount),
			strconv.Itoa(row.DamagedCount),
			strconv.Itoa(row.MachineCount),
			strconv.Itoa(row.Submissions),
			strconv.Itoa(row.Difference),
			row.VariancePercent.StringFixed(1),
			string(row.Classification),
		})
	}
	return data
}

// apiExportBagReport handles GET /api/reports/bags/export.
func (h *Handler) apiExportBagReport(w http.ResponseWriter, r *http.Request) {
	filter, ok := bagReportFilter(w, r)
	if !ok {
		return
	}
	result, err := h.svc.BagReport(r.Context(), actorFromContext(r.Context()), filter)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.export(w, r, "Bag Report", "bag-report", bagReportHeaders, bagReportRows(result))
}

var submissionHeaders = []string{
	"ID", "Date", "Employee", "Product", "Type", "Box", "Bag", "Receipt",
	"PO", "Good", "Damaged", "Needs Review", "Verified",
}

// apiExportSubmissions handles GET /api/submissions/export.
// Takes the same filters as GET /api/submissions.
func (h *Handler) apiExportSubmissions(w http.ResponseWriter, r *http.Request) {
	filter, ok := submissionFilter(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListSubmissions(r.Context(), actorFromContext(r.Context()), filter)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	data := make([][]string, 0, len(result.Submissions))
	for _, s := range result.Submissions {
		good, damaged := strconv.Itoa(s.Totals.Good), strconv.Itoa(s.Totals.Damaged)
		if s.TotalsErr != nil {
			good, damaged = "", ""
		}
		data = append(data, []string{
			strconv.Itoa(s.ID),
			s.SubmissionDate,
			s.EmployeeName,
			s.ProductName,
			string(s.Counts.Kind),
			derefInt(s.BoxNumber),
			derefInt(s.BagNumber),
			deref(s.ReceiptNumber),
			deref(s.AssignedPONumber),
			good,
			damaged,
			strconv.FormatBool(s.NeedsReview),
			strconv.FormatBool(s.POAssignmentVerified),
		})
	}
	h.export(w, r, "Submissions", "submissions", submissionHeaders, data)
}

// export writes data as an xlsx workbook. format may be omitted or "xlsx".
func (h *Handler) export(w http.ResponseWriter, r *http.Request, sheet, basename string, headers []string, data [][]string) {
	if format := r.URL.Query().Get("format"); format != "" && format != "xlsx" {
		writeError(w, r, "format must be xlsx", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	f, err := buildWorkbook(sheet, headers, data)
	if err != nil {
		h.writeAppError(w, r, fmt.Errorf("build %s workbook: %w", basename, err))
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%s.xlsx", basename, time.Now().Format("20060102")))
	if err := f.Write(w); err != nil {
		h.log.WithField("export", basename).Warnf("write workbook: %v", err)
	}
}

// buildWorkbook lays data out on one sheet with a bold, shaded header row.
func buildWorkbook(sheet string, headers []string, data [][]string) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	for rowIdx, row := range data {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			// Numbers go in as numbers so the sheet can sum them.
			if n, err := strconv.Atoi(value); err == nil {
				f.SetCellValue(sheet, cell, n)
			} else {
				f.SetCellValue(sheet, cell, value)
			}
		}
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(sheet, "A", last, 15); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
