// Package report renders ticket lists as an Excel workbook and as the short
// text staff paste into chat apps.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/diticoms/service-desk/internal/model"
	"github.com/dustin/go-humanize"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName     = "BaoCaoDichVu"
	ContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	unassigned    = "Chưa phân công"
	totalsLabel   = "TỔNG CỘNG"
	moneyFmtIndex = 3 // #,##0
)

var headers = []string{
	"Ngày nhập",
	"Khách hàng",
	"Số điện thoại",
	"Địa chỉ",
	"Kỹ thuật viên",
	"Nội dung dịch vụ",
	"Doanh thu (đ)",
	"Giá vốn (đ)",
	"Lợi nhuận (đ)",
	"Công nợ (đ)",
	"Trạng thái",
}

var colWidths = []float64{12, 24, 15, 30, 18, 40, 15, 15, 15, 15, 16}

// first money column, 1-based
const moneyCol = 7

// Workbook builds the report. withTotals appends the TỔNG CỘNG row, which only
// admins get.
func Workbook(tickets []model.Ticket, withTotals bool) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("report: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("report: header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyFmtIndex})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("report: money style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: moneyFmtIndex})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("report: totals style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(SheetName, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(SheetName, "A1", last, headerStyle)

	row := 2
	var revenue, cost, debt int64
	for _, t := range tickets {
		tech := t.Technician
		if tech == "" {
			tech = unassigned
		}
		values := []any{t.Date(), t.CustomerName, t.Phone, t.Address, tech, t.Content,
			t.Revenue, t.Cost, t.Profit(), t.Debt, string(t.Status)}
		if err := setRow(f, row, values); err != nil {
			f.Close()
			return nil, err
		}
		revenue += t.Revenue
		cost += t.Cost
		debt += t.Debt
		row++
	}
	if row > 2 {
		from, _ := excelize.CoordinatesToCellName(moneyCol, 2)
		to, _ := excelize.CoordinatesToCellName(moneyCol+3, row-1)
		f.SetCellStyle(SheetName, from, to, moneyStyle)
	}

	if withTotals {
		values := []any{totalsLabel, "", "", "", "", "", revenue, cost, revenue - cost, debt, ""}
		if err := setRow(f, row, values); err != nil {
			f.Close()
			return nil, err
		}
		from, _ := excelize.CoordinatesToCellName(1, row)
		to, _ := excelize.CoordinatesToCellName(len(headers), row)
		f.SetCellStyle(SheetName, from, to, totalStyle)
	}

	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(SheetName, col, col, w)
	}
	return f, nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("report: row %d: %w", row, err)
	}
	return nil
}

// Write streams the workbook to w.
func Write(w io.Writer, tickets []model.Ticket, withTotals bool) error {
	f, err := Workbook(tickets, withTotals)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}

// FileName is the download name for a report generated at now.
func FileName(now time.Time) string {
	return "Diticoms_Report_" + now.Format("2006-01-02") + ".xlsx"
}

// FormatVND groups thousands with dots: 1500000 -> "1.500.000".
func FormatVND(v int64) string {
	return strings.ReplaceAll(humanize.Comma(v), ",", ".")
}

// ShareText is the customer summary copied to chat apps.
func ShareText(t model.Ticket) string {
	address := t.Address
	if address == "" {
		address = "Không có"
	}
	content := t.Content
	if content == "" {
		content = "Sửa chữa thiết bị"
	}
	tech := t.Technician
	if tech == "" {
		tech = unassigned
	}
	var b strings.Builder
	b.WriteString("📌 THÔNG TIN KHÁCH HÀNG\n")
	b.WriteString("----------------------\n")
	fmt.Fprintf(&b, "👤 Khách: %s\n", t.CustomerName)
	fmt.Fprintf(&b, "📞 SĐT: %s\n", t.Phone)
	fmt.Fprintf(&b, "📍 Địa chỉ: %s\n", address)
	fmt.Fprintf(&b, "💬 Yêu cầu: %s\n", content)
	b.WriteString("----------------------\n")
	fmt.Fprintf(&b, "🔧 Kỹ thuật: %s", tech)
	return b.String()
}
