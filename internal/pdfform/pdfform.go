// Package pdfform reads and fills the interactive (AcroForm) fields of PDF
// documents.
package pdfform

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/HendryAvila/formpilot/internal/logging"
)

// ErrNoFillableFields is returned by Fill when none of the supplied values
// names a fillable field of the document.
var ErrNoFillableFields = errors.New("no fillable fields matched")

// FieldType is the kind of an AcroForm field.
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeCheckbox  FieldType = "checkbox"
	TypeRadio     FieldType = "radio"
	TypeButton    FieldType = "button"
	TypeComboBox  FieldType = "combobox"
	TypeListBox   FieldType = "listbox"
	TypeSignature FieldType = "signature"
	TypeUnknown   FieldType = "unknown"
)

// Fillable reports whether values of this type are written by Fill. Button
// types (checkboxes, radios, push buttons) and signatures are left alone.
func (t FieldType) Fillable() bool {
	switch t {
	case TypeText, TypeComboBox, TypeListBox:
		return true
	}
	return false
}

// Field is one terminal field of a form.
type Field struct {
	Name  string    `json:"name"`
	Type  FieldType `json:"type"`
	Value string    `json:"value"`
	// Page is 1-based; 0 when the widget could not be located.
	Page     int  `json:"page"`
	ReadOnly bool `json:"read_only,omitempty"`
}

// FieldSet is the ordered list of fields of a document.
type FieldSet struct {
	Fields []Field `json:"fields"`
}

// Len returns the number of fields.
func (fs *FieldSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.Fields)
}

// Names returns every field name in document order.
func (fs *FieldSet) Names() []string {
	if fs == nil {
		return nil
	}
	names := make([]string, 0, len(fs.Fields))
	for _, f := range fs.Fields {
		names = append(names, f.Name)
	}
	return names
}

// TextNames returns the names of fillable fields in document order.
func (fs *FieldSet) TextNames() []string {
	if fs == nil {
		return nil
	}
	var names []string
	for _, f := range fs.Fields {
		if f.Type.Fillable() {
			names = append(names, f.Name)
		}
	}
	return names
}

// Lookup finds a field by its fully qualified name.
func (fs *FieldSet) Lookup(name string) (Field, bool) {
	if fs == nil {
		return Field{}, false
	}
	for _, f := range fs.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Processor extracts and fills form fields.
type Processor struct {
	logger *log.Logger
}

// New creates a Processor. A nil logger discards output.
func New(logger *log.Logger) *Processor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Processor{logger: logger}
}

// OutputPath returns "<stem>_filled.pdf" next to src.
func OutputPath(src string) string {
	ext := filepath.Ext(src)
	stem := strings.TrimSuffix(filepath.Base(src), ext)
	return filepath.Join(filepath.Dir(src), stem+"_filled.pdf")
}

var disableConfigDir sync.Once

// newConfig returns a relaxed pdfcpu configuration. pdfcpu's on-disk config
// directory is never created.
func newConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
