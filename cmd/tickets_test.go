package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/diticoms/service-desk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketCriteria(t *testing.T) {
	saved := ticketFlags
	defer func() { ticketFlags = saved }()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

	ticketFlags.from, ticketFlags.to, ticketFlags.all, ticketFlags.status = "", "", false, ""
	c, err := ticketCriteria(now)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", c.DateFrom)
	assert.Equal(t, "2024-05-01", c.DateTo)

	ticketFlags.all = true
	c, err = ticketCriteria(now)
	require.NoError(t, err)
	assert.Empty(t, c.DateFrom)
	assert.True(t, c.ViewAll)

	ticketFlags.status = "Đã hủy"
	_, err = ticketCriteria(now)
	assert.Error(t, err)
}

func TestPrintTickets(t *testing.T) {
	items := []model.Ticket{
		{ID: "1", CreatedAt: "2024-05-01T08:00:00.000Z", CustomerName: "An", Phone: "0901", Technician: "Minh", Status: model.TicketStatusNew, Revenue: 1500000, Cost: 500000, Debt: 1500000},
		{ID: "2", CreatedAt: "2024-05-01T07:00:00.000Z", CustomerName: "Bình", Status: model.TicketStatusDone, Revenue: 200000},
	}

	var buf bytes.Buffer
	require.NoError(t, printTickets(&buf, items, true))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "1.500.000")
	assert.Contains(t, lines[2], " - ")
	assert.Equal(t, "2 phiếu, doanh thu 1.700.000đ, giá vốn 500.000đ, lợi nhuận 1.200.000đ, công nợ 1.500.000đ", lines[3])

	buf.Reset()
	require.NoError(t, printTickets(&buf, items, false))
	assert.True(t, strings.HasSuffix(buf.String(), "2 phiếu\n"))
}
