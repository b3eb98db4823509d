package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/diticoms/service-desk/internal/errs"
	"github.com/diticoms/service-desk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	text  string
	err   error
	calls []Request
}

func (s *stubGenerator) Generate(_ context.Context, req Request) (string, error) {
	s.calls = append(s.calls, req)
	return s.text, s.err
}

func TestDiagnose_TooShort(t *testing.T) {
	gen := &stubGenerator{}
	_, err := New(gen, nil).Diagnose(context.Background(), " hỏng ")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	assert.Empty(t, gen.calls)
}

func TestDiagnose_RecomputesTotals(t *testing.T) {
	gen := &stubGenerator{text: `{"suggestions":[
		{"desc":"Thay bàn phím","qty":1,"price":650000,"total":1},
		{"desc":"Vệ sinh","qty":"2","price":"150.000"},
		{"desc":"","qty":1,"price":1}
	]}`}
	items, err := New(gen, nil).Diagnose(context.Background(), "Laptop không nhận phím")
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, int64(650000), items[0].Total())
	assert.Equal(t, int64(2), items[1].Quantity())
	assert.Equal(t, int64(300000), items[1].Total())

	require.Len(t, gen.calls, 1)
	assert.Contains(t, gen.calls[0].Prompt, "Laptop không nhận phím")
	assert.Equal(t, diagnoseSchema, gen.calls[0].Schema)
	assert.NotEmpty(t, gen.calls[0].System)
}

func TestDiagnose_UnreadableAnswerYieldsNoItems(t *testing.T) {
	items, err := New(&stubGenerator{text: "sorry, cannot help"}, nil).Diagnose(context.Background(), "Máy không lên nguồn")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestDiagnose_GeneratorError(t *testing.T) {
	boom := errors.New("quota")
	_, err := New(&stubGenerator{err: boom}, nil).Diagnose(context.Background(), "Máy không lên nguồn")
	assert.ErrorIs(t, err, boom)
}

func TestDiagnose_Disabled(t *testing.T) {
	_, err := New(nil, nil).Diagnose(context.Background(), "Máy không lên nguồn")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestAsk_LimitsContextTo50(t *testing.T) {
	tickets := make([]model.Ticket, 80)
	for i := range tickets {
		tickets[i] = model.Ticket{CustomerName: fmt.Sprintf("KH%02d", i), CreatedAt: "2024-05-01T10:00:00.000Z", Revenue: 1000}
	}
	gen := &stubGenerator{text: `{"answer":"Có 80 phiếu"}`}

	ans, err := New(gen, nil).Ask(context.Background(), "Có bao nhiêu phiếu?", tickets)
	require.NoError(t, err)
	assert.Equal(t, "Có 80 phiếu", ans.Answer)
	assert.Nil(t, ans.FilterUpdate)

	prompt := gen.calls[0].Prompt
	_, data, ok := strings.Cut(prompt, "Dữ liệu phiếu dịch vụ hiện có: ")
	require.True(t, ok)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &rows))
	assert.Len(t, rows, 50)
	assert.Equal(t, "KH00", rows[0]["khach_hang"])
	assert.Equal(t, "2024-05-01", rows[0]["ngay"])
}

func TestAsk_FilterUpdate(t *testing.T) {
	gen := &stubGenerator{text: "```json\n{\"answer\":\"Đã lọc\",\"filterUpdate\":{\"searchTerm\":\"lan\",\"status\":\"Hoàn thành\",\"viewAll\":true}}\n```"}
	ans, err := New(gen, nil).Ask(context.Background(), "Lọc phiếu của Lan", nil)
	require.NoError(t, err)
	require.NotNil(t, ans.FilterUpdate)

	c := ans.FilterUpdate.Apply(model.FilterCriteria{DateFrom: "2024-05-01", Search: "old"})
	assert.Equal(t, "lan", c.Search)
	assert.Equal(t, model.TicketStatusDone, c.Status)
	assert.True(t, c.ViewAll)
	assert.Equal(t, "2024-05-01", c.DateFrom)
}

func TestFilterUpdate_IgnoresUnknownStatus(t *testing.T) {
	fu := &FilterUpdate{Status: "Đã hủy"}
	c := fu.Apply(model.FilterCriteria{Status: model.TicketStatusNew})
	assert.Equal(t, model.TicketStatusNew, c.Status)

	var nilUpdate *FilterUpdate
	assert.Equal(t, model.FilterCriteria{Search: "x"}, nilUpdate.Apply(model.FilterCriteria{Search: "x"}))
}

func TestAsk_FallsBackToApology(t *testing.T) {
	for _, text := range []string{"", "not json", `{"answer":""}`} {
		ans, err := New(&stubGenerator{text: text}, nil).Ask(context.Background(), "Doanh thu hôm nay?", nil)
		require.NoError(t, err)
		assert.Equal(t, Apology, ans.Answer, text)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	_, err := New(&stubGenerator{}, nil).Ask(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrDisabled)
}
