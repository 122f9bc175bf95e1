package pipeline

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"

	"github.com/HendryAvila/formpilot/internal/email"
	"github.com/HendryAvila/formpilot/internal/history"
)

// Result is the outcome of Process.
type Result struct {
	Status               string `json:"status"`
	EmailSubject         string `json:"email_subject,omitempty"`
	OriginalPDF          string `json:"original_pdf,omitempty"`
	FilledPDF            string `json:"filled_pdf,omitempty"`
	FieldsFilled         int    `json:"fields_filled"`
	PDFBase64            string `json:"pdf_base64,omitempty"`
	DownloadInstructions string `json:"download_instructions,omitempty"`
	Message              string `json:"message"`
	RunID                string `json:"run_id,omitempty"`
}

// Process runs the whole automation for the email described at emailURL.
// A document without fillable fields is not an error: the result has
// status "info". Every run, failed or not, is recorded when a history
// store is configured.
func (r *Runner) Process(ctx context.Context, emailURL string) (*Result, error) {
	run := history.Run{EmailURL: emailURL}

	res, err := r.process(ctx, emailURL, &run)
	if err != nil {
		run.Status = history.StatusError
		run.Message = err.Error()
		r.record(ctx, run)
		return nil, err
	}

	run.Status = res.Status
	run.Message = res.Message
	run.FieldsFilled = res.FieldsFilled
	run.FilledPDF = res.FilledPDF
	if rec := r.record(ctx, run); rec != nil {
		res.RunID = rec.ID
	}
	return res, nil
}

func (r *Runner) process(ctx context.Context, emailURL string, run *history.Run) (*Result, error) {
	if r.gen == nil {
		return nil, goerr.Wrap(ErrNoGenerator, "cannot process email")
	}

	raw, err := r.fetcher.GetJSON(ctx, emailURL)
	if err != nil {
		return nil, err
	}
	msg, err := email.Parse(raw)
	if err != nil {
		return nil, err
	}
	run.Subject = msg.Subject
	run.Sender = msg.Sender

	if len(msg.PDFURLs) == 0 {
		return nil, goerr.Wrap(ErrNoPDF, "cannot process email", goerr.V("url", emailURL))
	}

	dl, err := r.fetcher.DownloadPDF(ctx, msg.PDFURLs[0])
	if err != nil {
		return nil, err
	}
	run.OriginalPDF = dl.Path

	fs, err := r.forms.ExtractFields(dl.Path)
	if err != nil {
		return nil, err
	}
	names := fs.TextNames()
	if len(names) == 0 {
		r.logger.Info("no fillable fields", "pdf", dl.Path, "fields", fs.Len())
		return &Result{
			Status:       history.StatusInfo,
			EmailSubject: msg.Subject,
			OriginalPDF:  dl.Path,
			Message:      ErrNoFields.Error(),
		}, nil
	}

	targets := r.normalizer.Rules().GenerationTargets(names)
	values, err := r.gen.Generate(ctx, targets, r.documentText(dl.Path))
	if err != nil {
		return nil, err
	}

	filled, err := r.fill(ctx, dl.Path, names, values)
	if err != nil {
		return nil, err
	}

	r.logger.Info("processed email",
		"subject", msg.Subject, "pdf", dl.Path, "filled", filled.OutputPath, "fields", filled.FieldsFilled)

	return &Result{
		Status:               history.StatusSuccess,
		EmailSubject:         msg.Subject,
		OriginalPDF:          dl.Path,
		FilledPDF:            filled.OutputPath,
		FieldsFilled:         filled.FieldsFilled,
		PDFBase64:            filled.PDFBase64,
		DownloadInstructions: filled.DownloadInstructions,
		Message:              fmt.Sprintf("Successfully filled %d fields!", filled.FieldsFilled),
	}, nil
}

// documentText returns prompt context for the generator, or "" when
// disabled or unreadable.
func (r *Runner) documentText(path string) string {
	if r.contextChars <= 0 {
		return ""
	}
	text, err := r.forms.Text(path, r.contextChars)
	if err != nil {
		r.logger.Warn("could not read document text", "pdf", path, "error", err)
		return ""
	}
	return text
}

func (r *Runner) record(ctx context.Context, run history.Run) *history.Run {
	if r.history == nil {
		return nil
	}
	rec, err := r.history.Record(ctx, run)
	if err != nil {
		r.logger.Warn("could not record run", "error", err)
		return nil
	}
	return rec
}
