package invoice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/diticoms/service-desk/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bank = &model.BankConfig{BankID: "VCB", AccountNo: "0123456789", AccountName: "NGUYEN VAN A"}

func ticketWithItems(t *testing.T) model.Ticket {
	t.Helper()
	screen, err := model.NewWorkItem("Thay màn hình", 1, 1500000)
	require.NoError(t, err)
	ram, err := model.NewWorkItem("RAM 8GB", 2, 450000)
	require.NoError(t, err)
	return model.Ticket{
		ID: "1714555800000", CustomerName: "Trần Thị B", Phone: "0901234567",
		WorkItems: []model.WorkItem{screen, ram}, Revenue: 2400000, Debt: 400000,
	}
}

func TestVietQRURL(t *testing.T) {
	got := VietQRURL(bank, 2400000, "Trần B")
	assert.True(t, strings.HasPrefix(got, "https://img.vietqr.io/image/VCB-0123456789-compact2.png?"))

	u, err := url.Parse(got)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "2400000", q.Get("amount"))
	assert.Equal(t, "DITICOMS SERVICE Trần B", q.Get("addInfo"))
	assert.Equal(t, "NGUYEN VAN A", q.Get("accountName"))
	assert.NotContains(t, got, "+")

	assert.Empty(t, VietQRURL(nil, 100, "x"))
}

func TestRenderHTML(t *testing.T) {
	defer func(orig func() time.Time) { now = orig }(now)
	now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

	html, err := RenderHTML(ticketWithItems(t), bank)
	require.NoError(t, err)

	assert.Contains(t, html, `id="invoice"`)
	assert.Contains(t, html, "Trần Thị B")
	assert.Contains(t, html, "1/5/2024")
	assert.Contains(t, html, "Thay màn hình (x1)")
	assert.Contains(t, html, "RAM 8GB (x2)")
	assert.Contains(t, html, "900.000đ")
	assert.Contains(t, html, "2.400.000đ")
	assert.Contains(t, html, "CÒN NỢ:")
	assert.Contains(t, html, "400.000đ")
	assert.Contains(t, html, "img.vietqr.io/image/VCB-0123456789-compact2.png")
	assert.Contains(t, html, "HOTLINE: 0935.71.5151")
}

func TestRenderHTML_NoBankNoDebt(t *testing.T) {
	tk := ticketWithItems(t)
	tk.Debt = 0
	html, err := RenderHTML(tk, nil)
	require.NoError(t, err)
	assert.NotContains(t, html, "CÒN NỢ:")
	assert.NotContains(t, html, "vietqr")
}

func TestRenderHTML_EscapesCustomerInput(t *testing.T) {
	tk := ticketWithItems(t)
	tk.CustomerName = "<script>alert(1)</script>"
	html, err := RenderHTML(tk, nil)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestObjectName(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "invoices/2024/05/01/42.png", ObjectName("42", at))
}

func TestChromeRenderer_RejectsEmptyHTML(t *testing.T) {
	r := NewChromeRenderer(ChromeConfig{RemoteURL: "ws://127.0.0.1:1"})
	defer r.Close()
	_, err := r.RenderPNG(context.Background(), "  ")
	require.Error(t, err)
}

type fakeStore struct {
	exists    bool
	made      string
	putName   string
	putBody   []byte
	putType   string
	putErr    error
	presigned time.Duration
}

func (f *fakeStore) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = bucket
	return nil
}

func (f *fakeStore) PutObject(_ context.Context, _, name string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	f.putName = name
	f.putType = opts.ContentType
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	f.putBody = buf.Bytes()
	return minio.UploadInfo{Key: name}, nil
}

func (f *fakeStore) PresignedGetObject(_ context.Context, bucket, name string, expires time.Duration, _ url.Values) (*url.URL, error) {
	f.presigned = expires
	return url.Parse("https://files.example.com/" + bucket + "/" + name + "?sig=1")
}

func TestUploader_Upload(t *testing.T) {
	store := &fakeStore{}
	u := newUploader(store, "invoices", 0)
	u.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	link, err := u.Upload(context.Background(), "42", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/invoices/invoices/2024/05/01/42.png?sig=1", link)
	assert.Equal(t, "image/png", store.putType)
	assert.Equal(t, []byte("png"), store.putBody)
	assert.Equal(t, defaultLinkTTL, store.presigned)
}

func TestUploader_UploadError(t *testing.T) {
	u := newUploader(&fakeStore{putErr: errors.New("denied")}, "invoices", time.Hour)
	_, err := u.Upload(context.Background(), "42", []byte("png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestUploader_EnsureBucket(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, newUploader(store, "invoices", 0).EnsureBucket(context.Background()))
	assert.Equal(t, "invoices", store.made)

	store = &fakeStore{exists: true}
	require.NoError(t, newUploader(store, "invoices", 0).EnsureBucket(context.Background()))
	assert.Empty(t, store.made)
}

func TestUploader_Disabled(t *testing.T) {
	u, err := NewUploader(StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = u.Upload(context.Background(), "1", nil)
	assert.ErrorIs(t, err, ErrStorageDisabled)
	assert.ErrorIs(t, u.EnsureBucket(context.Background()), ErrStorageDisabled)
}
