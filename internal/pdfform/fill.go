package pdfform

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// fillDoc is the form data document understood by pdfcpu's form filler.
type fillDoc struct {
	Forms []fillForm `json:"forms"`
}

type fillForm struct {
	TextFields []textValue  `json:"textfield,omitempty"`
	ComboBoxes []textValue  `json:"combobox,omitempty"`
	ListBoxes  []listValues `json:"listbox,omitempty"`
}

type textValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type listValues struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Fill writes values into the fillable fields of src and saves the result
// to dst. Names that are not fillable fields of src are ignored. It returns
// the number of fields written.
func (p *Processor) Fill(src, dst string, values map[string]string) (int, error) {
	fs, err := p.ExtractFields(src)
	if err != nil {
		return 0, err
	}

	doc, n := buildFillDoc(fs, values)
	if n == 0 {
		return 0, goerr.Wrap(ErrNoFillableFields, "nothing to fill",
			goerr.V("path", src), goerr.V("values", len(values)))
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to encode form data")
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to open PDF", goerr.V("path", src))
	}
	defer in.Close()

	var out bytes.Buffer
	if err := api.FillForm(in, bytes.NewReader(data), &out, newConfig()); err != nil {
		return 0, goerr.Wrap(err, "failed to fill form", goerr.V("path", src))
	}
	if err := os.WriteFile(dst, out.Bytes(), 0o644); err != nil {
		return 0, goerr.Wrap(err, "failed to write filled PDF", goerr.V("path", dst))
	}

	p.logger.Info("filled form", "src", src, "dst", dst, "fields", n)
	return n, nil
}

// buildFillDoc selects the entries of values that name fillable fields, in
// document order.
func buildFillDoc(fs *FieldSet, values map[string]string) (fillDoc, int) {
	var form fillForm
	n := 0
	for _, f := range fs.Fields {
		v, ok := values[f.Name]
		if !ok || f.ReadOnly {
			continue
		}
		switch f.Type {
		case TypeText:
			form.TextFields = append(form.TextFields, textValue{Name: f.Name, Value: v})
		case TypeComboBox:
			form.ComboBoxes = append(form.ComboBoxes, textValue{Name: f.Name, Value: v})
		case TypeListBox:
			form.ListBoxes = append(form.ListBoxes, listValues{Name: f.Name, Values: []string{v}})
		default:
			continue
		}
		n++
	}
	return fillDoc{Forms: []fillForm{form}}, n
}
