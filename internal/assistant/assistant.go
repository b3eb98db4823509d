// Package assistant wraps the Gemini model for two jobs: suggesting billable
// work items from a fault description, and answering staff questions about the
// ticket list.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/diticoms/service-desk/internal/errs"
	"github.com/diticoms/service-desk/internal/model"
	"github.com/diticoms/service-desk/internal/sheetapi"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	minDiagnoseLen = 5
	maxContext     = 50
	// Apology is returned when the model answer cannot be parsed.
	Apology = "Xin lỗi, tôi gặp trục trặc khi truy xuất dữ liệu."
)

var ErrDisabled = errors.New("assistant: no API key configured")

var errNoJSON = errors.New("assistant: no JSON in model response")

// Request is one structured generation call.
type Request struct {
	System string
	Prompt string
	Schema *genai.Schema
}

// Generator returns the raw response text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeminiGenerator calls the Gemini API with a JSON response schema.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrDisabled
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: modelName}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("assistant: generate: %w", err)
	}
	return resp.Text(), nil
}

type Assistant struct {
	gen Generator
	log *zap.Logger
}

func New(gen Generator, log *zap.Logger) *Assistant {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{gen: gen, log: log}
}

const diagnoseSystem = "Bạn là một chuyên gia sửa chữa máy tính và thiết bị điện tử của Diticoms. " +
	"Bạn chỉ trả về dữ liệu dưới dạng JSON để hệ thống tự động điền vào hóa đơn."

var diagnoseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"suggestions": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"desc":  {Type: genai.TypeString, Description: "Tên linh kiện hoặc dịch vụ đề xuất"},
					"qty":   {Type: genai.TypeNumber, Description: "Số lượng"},
					"price": {Type: genai.TypeNumber, Description: "Đơn giá dự kiến (VNĐ)"},
				},
				Required: []string{"desc", "qty", "price"},
			},
		},
	},
	Required: []string{"suggestions"},
}

// Diagnose suggests work items for a customer's fault description. Item
// totals are recomputed locally; an unreadable answer yields no items.
func (a *Assistant) Diagnose(ctx context.Context, content string) ([]model.WorkItem, error) {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) < minDiagnoseLen {
		return nil, fmt.Errorf("%w: mô tả quá ngắn để chẩn đoán", errs.ErrInvalidInput)
	}
	if a.gen == nil {
		return nil, ErrDisabled
	}

	prompt := fmt.Sprintf("Khách hàng báo lỗi: %q. Hãy phân tích lỗi kỹ thuật này và đề xuất các dịch vụ "+
		"hoặc linh kiện thay thế kèm đơn giá phù hợp tại thị trường Việt Nam hiện nay.", content)
	text, err := a.gen.Generate(ctx, Request{System: diagnoseSystem, Prompt: prompt, Schema: diagnoseSchema})
	if err != nil {
		return nil, err
	}

	var out struct {
		Suggestions []model.WorkItem `json:"suggestions"`
	}
	if err := decode(text, &out); err != nil {
		a.log.Warn("assistant: unreadable diagnosis", zap.Error(err))
		return []model.WorkItem{}, nil
	}
	items := make([]model.WorkItem, 0, len(out.Suggestions))
	for _, it := range out.Suggestions {
		if strings.TrimSpace(it.Desc()) == "" {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// FilterUpdate is the list filter the model suggests applying.
type FilterUpdate struct {
	SearchTerm string             `json:"search_term,omitempty"`
	Status     model.TicketStatus `json:"status,omitempty"`
	ViewAll    *bool              `json:"view_all,omitempty"`
}

type Answer struct {
	Answer       string        `json:"answer"`
	FilterUpdate *FilterUpdate `json:"filter_update,omitempty"`
}

// Apply folds the update into c.
func (f *FilterUpdate) Apply(c model.FilterCriteria) model.FilterCriteria {
	if f == nil {
		return c
	}
	if f.SearchTerm != "" {
		c.Search = f.SearchTerm
	}
	if f.Status.Valid() {
		c.Status = f.Status
	}
	if f.ViewAll != nil {
		c.ViewAll = *f.ViewAll
	}
	return c
}

const askSystem = "Bạn là trợ lý dữ liệu thông minh của Diticoms. Bạn giúp nhân viên thống kê doanh thu, " +
	"tìm kiếm khách hàng hoặc lọc trạng thái công việc. Trả lời ngắn gọn, chuyên nghiệp."

var askSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"answer": {Type: genai.TypeString, Description: "Câu trả lời phân tích hoặc thống kê"},
		"filterUpdate": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"searchTerm": {Type: genai.TypeString, Description: "Từ khóa cần tìm nếu người dùng yêu cầu lọc"},
				"status":     {Type: genai.TypeString, Description: "Trạng thái cần lọc"},
				"viewAll":    {Type: genai.TypeBoolean, Description: "Bật chế độ xem tất cả nếu cần"},
			},
		},
	},
	Required: []string{"answer"},
}

type contextRow struct {
	Customer   string `json:"khach_hang"`
	Date       string `json:"ngay"`
	Status     string `json:"trang_thai"`
	Technician string `json:"ky_thuat"`
	Revenue    int64  `json:"doanh_thu"`
	Content    string `json:"noi_dung"`
}

// Ask answers a question over at most the first 50 tickets.
func (a *Assistant) Ask(ctx context.Context, question string, tickets []model.Ticket) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: câu hỏi trống", errs.ErrInvalidInput)
	}
	if a.gen == nil {
		return Answer{}, ErrDisabled
	}

	if len(tickets) > maxContext {
		tickets = tickets[:maxContext]
	}
	rows := make([]contextRow, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, contextRow{
			Customer:   t.CustomerName,
			Date:       t.Date(),
			Status:     string(t.Status),
			Technician: t.Technician,
			Revenue:    t.Revenue,
			Content:    t.Content,
		})
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return Answer{}, fmt.Errorf("assistant: encode context: %w", err)
	}

	prompt := fmt.Sprintf("Câu hỏi từ quản lý: %q\n\nDữ liệu phiếu dịch vụ hiện có: %s", question, data)
	text, err := a.gen.Generate(ctx, Request{System: askSystem, Prompt: prompt, Schema: askSchema})
	if err != nil {
		return Answer{}, err
	}

	var raw struct {
		Answer       string `json:"answer"`
		FilterUpdate *struct {
			SearchTerm string `json:"searchTerm"`
			Status     string `json:"status"`
			ViewAll    *bool  `json:"viewAll"`
		} `json:"filterUpdate"`
	}
	if err := decode(text, &raw); err != nil || raw.Answer == "" {
		a.log.Warn("assistant: unreadable answer", zap.Error(err))
		return Answer{Answer: Apology}, nil
	}
	ans := Answer{Answer: raw.Answer}
	if fu := raw.FilterUpdate; fu != nil && (fu.SearchTerm != "" || fu.Status != "" || fu.ViewAll != nil) {
		ans.FilterUpdate = &FilterUpdate{
			SearchTerm: fu.SearchTerm,
			Status:     model.TicketStatus(fu.Status),
			ViewAll:    fu.ViewAll,
		}
	}
	return ans, nil
}

func decode(text string, v any) error {
	span, ok := sheetapi.ExtractJSON([]byte(text))
	if !ok {
		return errNoJSON
	}
	return json.Unmarshal(span, v)
}
