package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

const minimalPDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Options{
		WorkDir: filepath.Join(t.TempDir(), "work"),
		Timeout: 5 * time.Second,
		Retries: 1,
	})
	gt.NoError(t, err)
	return c
}

func TestNew_RequiresWorkDir(t *testing.T) {
	_, err := New(Options{})
	gt.Error(t, err)
}

func TestNew_CreatesWorkDir(t *testing.T) {
	c := newTestClient(t)
	info, err := os.Stat(c.WorkDir())
	gt.NoError(t, err)
	gt.True(t, info.IsDir())
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subject":"hello"}`))
	}))
	defer srv.Close()

	body, err := newTestClient(t).GetJSON(context.Background(), srv.URL+"/email.json")
	gt.NoError(t, err)
	gt.Equal(t, string(body), `{"subject":"hello"}`)
}

func TestGetJSON_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestClient(t).GetJSON(context.Background(), srv.URL+"/missing.json")
	gt.True(t, errors.Is(err, ErrHTTPStatus))
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	body, err := newTestClient(t).GetJSON(context.Background(), srv.URL)
	gt.NoError(t, err)
	gt.Equal(t, string(body), "{}")
	gt.Equal(t, calls.Load(), int32(2))
}

func TestDownloadPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte(minimalPDF))
	}))
	defer srv.Close()

	c := newTestClient(t)
	dl, err := c.DownloadPDF(context.Background(), srv.URL+"/forms/bill-of-sale.pdf")
	gt.NoError(t, err)
	gt.Equal(t, dl.Path, filepath.Join(c.WorkDir(), "bill-of-sale.pdf"))
	gt.Equal(t, dl.Size, len(minimalPDF))
	gt.Equal(t, dl.ContentType, "application/pdf")

	data, err := os.ReadFile(dl.Path)
	gt.NoError(t, err)
	gt.Equal(t, string(data), minimalPDF)
}

func TestDownloadPDF_ContentDispositionName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="Vessel Form.pdf"`)
		_, _ = w.Write([]byte(minimalPDF))
	}))
	defer srv.Close()

	c := newTestClient(t)
	dl, err := c.DownloadPDF(context.Background(), srv.URL+"/download")
	gt.NoError(t, err)
	gt.Equal(t, filepath.Base(dl.Path), "Vessel_Form.pdf")
}

func TestDownloadPDF_RejectsNonPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>Sign in to continue</body></html>"))
	}))
	defer srv.Close()

	c := newTestClient(t)
	_, err := c.DownloadPDF(context.Background(), srv.URL+"/form.pdf")
	gt.True(t, errors.Is(err, ErrNotPDF))

	entries, err := os.ReadDir(c.WorkDir())
	gt.NoError(t, err)
	gt.Equal(t, len(entries), 0)
}

func TestDownloadPDF_BodyLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(minimalPDF))
	}))
	defer srv.Close()

	c, err := New(Options{
		WorkDir:      filepath.Join(t.TempDir(), "work"),
		Timeout:      5 * time.Second,
		Retries:      2,
		MaxBodyBytes: 16,
	})
	gt.NoError(t, err)

	_, err = c.DownloadPDF(context.Background(), srv.URL+"/form.pdf")
	gt.True(t, errors.Is(err, ErrTooLarge))
	gt.Equal(t, calls.Load(), int32(1))

	entries, err := os.ReadDir(c.WorkDir())
	gt.NoError(t, err)
	gt.Equal(t, len(entries), 0)
}

func TestDirectURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{
			"https://drive.google.com/file/d/1AbC_x-9/view?usp=sharing",
			"https://drive.google.com/uc?export=download&id=1AbC_x-9",
		},
		{
			"https://drive.google.com/open?id=XYZ",
			"https://drive.google.com/uc?export=download&id=XYZ",
		},
		{
			"https://drive.google.com/drive/folders",
			"https://drive.google.com/drive/folders",
		},
		{
			"https://files.example.com/form.pdf",
			"https://files.example.com/form.pdf",
		},
	}

	for _, tt := range tests {
		if got := DirectURL(tt.in); got != tt.want {
			t.Errorf("DirectURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		url, disposition, want string
	}{
		{"https://x.example/forms/sale.pdf", "", "sale.pdf"},
		{"https://x.example/forms/sale", "", "sale.pdf"},
		{"https://x.example/forms/SALE.PDF", "", "SALE.PDF"},
		{"https://x.example/", "", "downloaded.pdf"},
		{"https://x.example", "", "downloaded.pdf"},
		{"https://x.example/a/../../etc/passwd", "", "passwd.pdf"},
		{"https://drive.google.com/file/d/1AbC/view?usp=sharing", "", "1AbC.pdf"},
		{"https://x.example/dl", `attachment; filename="form 1.pdf"`, "form_1.pdf"},
		{"https://x.example/dl", "inline", "dl.pdf"},
	}

	for _, tt := range tests {
		if got := FileName(tt.url, tt.disposition); got != tt.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", tt.url, tt.disposition, got, tt.want)
		}
	}
}
