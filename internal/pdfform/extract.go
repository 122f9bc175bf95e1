package pdfform

import (
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Field flag bits (PDF 32000-1, 12.7.3.1 and 12.7.4).
const (
	flagReadOnly   = 1
	flagRadio      = 1 << 15
	flagPushButton = 1 << 16
	flagCombo      = 1 << 17
)

// maxDepth bounds the field tree walk against malformed Kids cycles.
const maxDepth = 32

// ExtractFields lists the terminal fields of the document at path. A
// document without an AcroForm yields an empty set.
func (p *Processor) ExtractFields(path string) (*FieldSet, error) {
	ctx, err := readContext(path)
	if err != nil {
		return nil, err
	}

	fs := &FieldSet{Fields: []Field{}}

	root, err := ctx.Catalog()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read catalog", goerr.V("path", path))
	}

	acroObj, found := root.Find("AcroForm")
	if !found {
		p.logger.Debug("no AcroForm in document", "path", path)
		return fs, nil
	}
	acro, err := ctx.DereferenceDict(acroObj)
	if err != nil || acro == nil {
		return fs, nil
	}

	fieldsObj, found := acro.Find("Fields")
	if !found {
		return fs, nil
	}
	fields, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read AcroForm fields", goerr.V("path", path))
	}

	w := &walker{ctx: ctx, pages: indexPages(ctx), out: fs}
	for _, f := range fields {
		w.walk(f, "", inherited{}, 0)
	}

	p.logger.Debug("extracted form fields", "path", path, "count", len(fs.Fields))
	return fs, nil
}

func readContext(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open PDF", goerr.V("path", path))
	}
	defer f.Close()

	ctx, err := api.ReadContext(f, newConfig())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read PDF", goerr.V("path", path))
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, goerr.Wrap(err, "failed to count pages", goerr.V("path", path))
	}
	return ctx, nil
}

// inherited carries the inheritable field attributes down the tree.
type inherited struct {
	ft    string
	flags int
	value types.Object
}

// pageIndex maps widget annotations to their page: indirect widgets by
// object number, inline widgets by their partial name.
type pageIndex struct {
	byObj  map[int]int
	byName map[string]int
}

type walker struct {
	ctx   *model.Context
	pages pageIndex
	out   *FieldSet
}

func (w *walker) walk(obj types.Object, parent string, inh inherited, depth int) {
	if depth > maxDepth {
		return
	}
	d, err := w.ctx.DereferenceDict(obj)
	if err != nil || d == nil {
		return
	}

	partial := w.stringEntry(d, "T")
	name := partial
	if parent != "" && partial != "" {
		name = parent + "." + partial
	} else if partial == "" {
		name = parent
	}

	if o, ok := d.Find("FT"); ok {
		if ft, err := w.ctx.DereferenceName(o, model.V10, nil); err == nil {
			inh.ft = string(ft)
		}
	}
	if o, ok := d.Find("Ff"); ok {
		if ff, err := w.ctx.DereferenceInteger(o); err == nil && ff != nil {
			inh.flags = int(*ff)
		}
	}
	if o, ok := d.Find("V"); ok {
		inh.value = o
	}

	var kids types.Array
	if o, ok := d.Find("Kids"); ok {
		kids, _ = w.ctx.DereferenceArray(o)
	}

	if w.hasNamedKid(kids) {
		for _, k := range kids {
			w.walk(k, name, inh, depth+1)
		}
		return
	}

	if name == "" {
		name = fmt.Sprintf("field_%d", len(w.out.Fields))
	}

	typ := fieldType(inh.ft, inh.flags)
	w.out.Fields = append(w.out.Fields, Field{
		Name:     name,
		Type:     typ,
		Value:    w.valueString(inh.value),
		Page:     w.pageOf(obj, partial, kids),
		ReadOnly: inh.flags&flagReadOnly != 0,
	})
}

func (w *walker) hasNamedKid(kids types.Array) bool {
	for _, k := range kids {
		d, err := w.ctx.DereferenceDict(k)
		if err != nil || d == nil {
			continue
		}
		if _, ok := d.Find("T"); ok {
			return true
		}
	}
	return false
}

func (w *walker) stringEntry(d types.Dict, key string) string {
	o, ok := d.Find(key)
	if !ok {
		return ""
	}
	s, err := w.ctx.DereferenceStringOrHexLiteral(o, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

// valueString renders a /V entry: strings as-is, names without the slash,
// arrays joined with ", ".
func (w *walker) valueString(o types.Object) string {
	if o == nil {
		return ""
	}
	if s, err := w.ctx.DereferenceStringOrHexLiteral(o, model.V10, nil); err == nil {
		return s
	}
	if n, err := w.ctx.DereferenceName(o, model.V10, nil); err == nil {
		return string(n)
	}
	if arr, err := w.ctx.DereferenceArray(o); err == nil {
		parts := make([]string, 0, len(arr))
		for _, item := range arr {
			if s := w.valueString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func (w *walker) pageOf(obj types.Object, partial string, kids types.Array) int {
	if n, ok := objectNumber(obj); ok {
		if p, ok := w.pages.byObj[n]; ok {
			return p
		}
	}
	for _, k := range kids {
		if n, ok := objectNumber(k); ok {
			if p, ok := w.pages.byObj[n]; ok {
				return p
			}
		}
	}
	return w.pages.byName[partial]
}

func fieldType(ft string, flags int) FieldType {
	switch ft {
	case "Tx":
		return TypeText
	case "Btn":
		switch {
		case flags&flagRadio != 0:
			return TypeRadio
		case flags&flagPushButton != 0:
			return TypeButton
		}
		return TypeCheckbox
	case "Ch":
		if flags&flagCombo != 0 {
			return TypeComboBox
		}
		return TypeListBox
	case "Sig":
		return TypeSignature
	}
	return TypeUnknown
}

func objectNumber(o types.Object) (int, bool) {
	switch ir := o.(type) {
	case types.IndirectRef:
		return int(ir.ObjectNumber), true
	case *types.IndirectRef:
		if ir != nil {
			return int(ir.ObjectNumber), true
		}
	}
	return 0, false
}

// indexPages walks the page tree and records where each widget sits.
func indexPages(ctx *model.Context) pageIndex {
	idx := pageIndex{byObj: map[int]int{}, byName: map[string]int{}}

	root, err := ctx.Catalog()
	if err != nil {
		return idx
	}
	pagesObj, ok := root.Find("Pages")
	if !ok {
		return idx
	}

	page := 0
	var visit func(o types.Object, depth int)
	visit = func(o types.Object, depth int) {
		if depth > maxDepth {
			return
		}
		d, err := ctx.DereferenceDict(o)
		if err != nil || d == nil {
			return
		}
		if kidsObj, ok := d.Find("Kids"); ok {
			kids, err := ctx.DereferenceArray(kidsObj)
			if err != nil {
				return
			}
			for _, k := range kids {
				visit(k, depth+1)
			}
			return
		}

		page++
		annotsObj, ok := d.Find("Annots")
		if !ok {
			return
		}
		annots, err := ctx.DereferenceArray(annotsObj)
		if err != nil {
			return
		}
		for _, a := range annots {
			if n, ok := objectNumber(a); ok {
				if _, seen := idx.byObj[n]; !seen {
					idx.byObj[n] = page
				}
				continue
			}
			ad, err := ctx.DereferenceDict(a)
			if err != nil || ad == nil {
				continue
			}
			if t, ok := ad.Find("T"); ok {
				if s, err := ctx.DereferenceStringOrHexLiteral(t, model.V10, nil); err == nil {
					if _, seen := idx.byName[s]; !seen {
						idx.byName[s] = page
					}
				}
			}
		}
	}
	visit(pagesObj, 0)

	return idx
}
