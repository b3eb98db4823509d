// Package invoice renders the customer receipt: an HTML page with the work
// items, the amount due and a VietQR transfer code, optionally rasterised to
// PNG and shared through object storage.
package invoice

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/diticoms/service-desk/internal/model"
	"github.com/diticoms/service-desk/internal/report"
)

const (
	Brand   = "DITICOMS SERVICE"
	Hotline = "0935.71.5151"
)

// Renderer turns a full HTML document into a PNG image.
type Renderer interface {
	RenderPNG(ctx context.Context, html string) ([]byte, error)
}

// VietQRURL builds the img.vietqr.io link for a transfer of amount dong.
// Returns "" when bank is nil.
func VietQRURL(bank *model.BankConfig, amount int64, customer string) string {
	if bank == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("https://img.vietqr.io/image/")
	b.WriteString(url.PathEscape(bank.BankID))
	b.WriteByte('-')
	b.WriteString(url.PathEscape(bank.AccountNo))
	b.WriteString("-compact2.png?amount=")
	b.WriteString(strconv.FormatInt(amount, 10))
	b.WriteString("&addInfo=")
	b.WriteString(queryEscape(Brand + " " + customer))
	b.WriteString("&accountName=")
	b.WriteString(queryEscape(bank.AccountName))
	return b.String()
}

func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

type line struct {
	Desc  string
	Qty   int64
	Total string
}

type view struct {
	Brand    string
	Hotline  string
	Customer string
	Phone    string
	Date     string
	Lines    []line
	Total    string
	Debt     string
	HasDebt  bool
	Bank     *model.BankConfig
	QRURL    string
}

var page = template.Must(template.New("invoice").Parse(pageHTML))

var now = time.Now

// RenderHTML renders the receipt page for t. The total is the work item
// estimate, the same figure encoded in the QR code.
func RenderHTML(t model.Ticket, bank *model.BankConfig) (string, error) {
	total := t.Estimate()
	v := view{
		Brand:    Brand,
		Hotline:  Hotline,
		Customer: t.CustomerName,
		Phone:    t.Phone,
		Date:     now().Format("2/1/2006"),
		Total:    report.FormatVND(total),
		Debt:     report.FormatVND(t.Debt),
		HasDebt:  t.Debt > 0,
		Bank:     bank,
		QRURL:    VietQRURL(bank, total, t.CustomerName),
	}
	for _, it := range t.WorkItems {
		v.Lines = append(v.Lines, line{Desc: it.Desc(), Qty: it.Quantity(), Total: report.FormatVND(it.Total())})
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("invoice: render html: %w", err)
	}
	return buf.String(), nil
}

// ObjectName is the storage key for a ticket's receipt image.
func ObjectName(ticketID string, at time.Time) string {
	return fmt.Sprintf("invoices/%s/%s.png", at.Format("2006/01/02"), ticketID)
}

const pageHTML = `<!DOCTYPE html>
<html lang="vi">
<head>
<meta charset="UTF-8">
<title>{{.Brand}} - {{.Customer}}</title>
<style>
body { margin: 0; background: #fff; font-family: Arial, Helvetica, sans-serif; color: #0f172a; }
#invoice { width: 400px; padding: 32px; box-sizing: border-box; }
.head { text-align: center; }
.head h1 { margin: 0; font-size: 24px; font-weight: 900; color: #2563eb; text-transform: uppercase; }
.head p { margin: 4px 0 0; font-size: 10px; font-weight: 700; color: #64748b; text-transform: uppercase; letter-spacing: .1em; }
.bar { width: 48px; height: 4px; margin: 8px auto 24px; background: #2563eb; border-radius: 4px; }
.row { display: flex; justify-content: space-between; border-bottom: 1px solid #f1f5f9; padding: 8px 0; }
.label { font-size: 10px; font-weight: 700; color: #94a3b8; text-transform: uppercase; }
.value { font-size: 14px; font-weight: 700; }
h3 { margin: 24px 0 8px; padding: 8px; font-size: 10px; font-weight: 900; color: #2563eb; background: #eff6ff; border-radius: 8px; text-align: center; text-transform: uppercase; }
table { width: 100%; border-collapse: collapse; font-size: 12px; }
th { color: #94a3b8; text-align: left; padding: 8px 0; border-bottom: 1px solid #f1f5f9; }
td { padding: 12px 0; border-bottom: 1px solid #f8fafc; font-weight: 600; }
.num { text-align: right; white-space: nowrap; }
.total { display: flex; justify-content: space-between; margin-top: 16px; font-size: 18px; font-weight: 900; }
.total .value { font-size: 18px; color: #2563eb; }
.debt { display: flex; justify-content: space-between; margin-top: 8px; color: #ef4444; font-weight: 700; }
.qr { margin-top: 24px; padding: 24px; background: #f8fafc; border: 1px solid #f1f5f9; border-radius: 24px; text-align: center; }
.qr img { width: 192px; height: 192px; }
.foot { margin-top: 24px; text-align: center; }
.foot p { margin: 2px 0; font-size: 10px; font-weight: 700; color: #94a3b8; text-transform: uppercase; }
.foot .hotline { font-size: 12px; font-weight: 900; color: #0f172a; }
</style>
</head>
<body>
<div id="invoice">
  <div class="head">
    <h1>{{.Brand}}</h1>
    <p>Trung tâm sửa chữa &amp; Bảo trì Laptop/PC</p>
    <div class="bar"></div>
  </div>
  <div class="row"><span class="label">Khách hàng:</span><span class="value">{{.Customer}}</span></div>
  <div class="row"><span class="label">SĐT:</span><span class="value">{{.Phone}}</span></div>
  <div class="row"><span class="label">Ngày nhận:</span><span class="value">{{.Date}}</span></div>
  <h3>Nội dung sửa chữa</h3>
  <table>
    <thead><tr><th>DỊCH VỤ</th><th class="num">THÀNH TIỀN</th></tr></thead>
    <tbody>
    {{- range .Lines}}
      <tr><td>{{.Desc}} (x{{.Qty}})</td><td class="num">{{.Total}}đ</td></tr>
    {{- end}}
    </tbody>
  </table>
  <div class="total"><span>TỔNG THANH TOÁN:</span><span class="value">{{.Total}}đ</span></div>
  {{- if .HasDebt}}
  <div class="debt"><span>CÒN NỢ:</span><span>{{.Debt}}đ</span></div>
  {{- end}}
  {{- if .Bank}}
  <div class="qr">
    <p class="label">Quét mã chuyển khoản</p>
    <img src="{{.QRURL}}" alt="QR Payment">
    <div class="label">{{.Bank.BankID}} - {{.Bank.AccountNo}}</div>
    <div class="value">{{.Bank.AccountName}}</div>
  </div>
  {{- end}}
  <div class="foot">
    <p>Cảm ơn quý khách đã tin tưởng!</p>
    <p class="hotline">HOTLINE: {{.Hotline}}</p>
  </div>
</div>
</body>
</html>
`
