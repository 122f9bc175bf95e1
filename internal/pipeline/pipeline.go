// Package pipeline runs the email-to-filled-form automation: read an email
// description, download its PDF attachment, enumerate the form fields, have
// a model invent values, normalize them and write them into the form.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/m-mizutani/goerr/v2"

	"github.com/HendryAvila/formpilot/internal/fetch"
	"github.com/HendryAvila/formpilot/internal/history"
	"github.com/HendryAvila/formpilot/internal/logging"
	"github.com/HendryAvila/formpilot/internal/normalize"
	"github.com/HendryAvila/formpilot/internal/pdfform"
)

// DownloadInstructions tells the caller how to turn pdf_base64 into a file.
const DownloadInstructions = "Decode pdf_base64 from base64 and save as .pdf"

var (
	// ErrNoPDF is returned when the email has no PDF attachment link.
	ErrNoPDF = errors.New("no PDF found in email")
	// ErrNoFields is returned by FillForm for a document without fillable fields.
	ErrNoFields = errors.New("PDF has no fillable form fields")
	// ErrNoGenerator is returned by Process when no value generator is configured.
	ErrNoGenerator = errors.New("value generation is not configured (set OPENAI_API_KEY)")
)

// Fetcher retrieves email documents and PDFs.
type Fetcher interface {
	GetJSON(ctx context.Context, url string) ([]byte, error)
	DownloadPDF(ctx context.Context, url string) (*fetch.Download, error)
}

// Forms reads and fills PDF forms.
type Forms interface {
	ExtractFields(path string) (*pdfform.FieldSet, error)
	Fill(src, dst string, values map[string]string) (int, error)
	Text(path string, limit int) (string, error)
}

// Generator invents values for form fields.
type Generator interface {
	Generate(ctx context.Context, fields []string, docText string) (map[string]string, error)
}

// Recorder stores finished runs.
type Recorder interface {
	Record(ctx context.Context, r history.Run) (*history.Run, error)
}

// Deps are the collaborators of a Runner. Generator and History may be nil.
type Deps struct {
	Fetcher    Fetcher
	Forms      Forms
	Generator  Generator
	Normalizer *normalize.Normalizer
	History    Recorder
	Logger     *log.Logger
	// ContextChars caps the document text passed to the generator; zero
	// disables it.
	ContextChars int
}

// Runner executes the automation.
type Runner struct {
	fetcher      Fetcher
	forms        Forms
	gen          Generator
	normalizer   *normalize.Normalizer
	history      Recorder
	logger       *log.Logger
	contextChars int
}

// New creates a Runner.
func New(d Deps) *Runner {
	r := &Runner{
		fetcher:      d.Fetcher,
		forms:        d.Forms,
		gen:          d.Generator,
		normalizer:   d.Normalizer,
		history:      d.History,
		logger:       d.Logger,
		contextChars: d.ContextChars,
	}
	if r.normalizer == nil {
		r.normalizer = normalize.New(nil)
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	return r
}

// Normalizer returns the normalizer applied before filling.
func (r *Runner) Normalizer() *normalize.Normalizer {
	return r.normalizer
}

// HasGenerator reports whether Process can generate values.
func (r *Runner) HasGenerator() bool {
	return r.gen != nil
}

// FillResult describes a filled form.
type FillResult struct {
	Status               string            `json:"status"`
	Message              string            `json:"message"`
	OutputPath           string            `json:"output_path"`
	FieldsFilled         int               `json:"fields_filled"`
	PDFBase64            string            `json:"pdf_base64"`
	DownloadInstructions string            `json:"download_instructions"`
	Values               map[string]string `json:"field_values"`
}

// FillForm normalizes values against the fillable fields of the PDF at
// pdfPath and writes them to "<stem>_filled.pdf".
func (r *Runner) FillForm(ctx context.Context, pdfPath string, values map[string]string) (*FillResult, error) {
	fs, err := r.forms.ExtractFields(pdfPath)
	if err != nil {
		return nil, err
	}
	names := fs.TextNames()
	if len(names) == 0 {
		return nil, goerr.Wrap(ErrNoFields, "cannot fill form", goerr.V("path", pdfPath))
	}
	return r.fill(ctx, pdfPath, names, values)
}

func (r *Runner) fill(_ context.Context, pdfPath string, names []string, values map[string]string) (*FillResult, error) {
	normalized := r.normalizer.Normalize(names, values)

	dst := pdfform.OutputPath(pdfPath)
	n, err := r.forms.Fill(pdfPath, dst, normalized)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read filled PDF", goerr.V("path", dst))
	}

	return &FillResult{
		Status:               history.StatusSuccess,
		Message:              fmt.Sprintf("Filled %d fields", n),
		OutputPath:           dst,
		FieldsFilled:         n,
		PDFBase64:            base64.StdEncoding.EncodeToString(data),
		DownloadInstructions: DownloadInstructions,
		Values:               normalized,
	}, nil
}
