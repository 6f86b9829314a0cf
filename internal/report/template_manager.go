package report

import (
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// reportTemplates holds the parsed report templates, keyed by file name.
// The built-in document is registered under htmlTemplateName at
// construction; OverrideFromDir lets an operator replace or extend it with
// .tmpl/.gohtml/.html files. Every template shares the report function set.
type reportTemplates struct {
	funcs     template.FuncMap
	templates map[string]*template.Template
	mu        sync.RWMutex
}

func newReportTemplates() (*reportTemplates, error) {
	rt := &reportTemplates{
		funcs:     templateFuncs(),
		templates: make(map[string]*template.Template),
	}
	if err := rt.register(htmlTemplateName, reportTemplate); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *reportTemplates) register(name, src string) error {
	parsed, err := template.New(name).Funcs(rt.funcs).Parse(src)
	if err != nil {
		return fmt.Errorf("parse template %q: %w", name, err)
	}
	rt.mu.Lock()
	rt.templates[name] = parsed
	rt.mu.Unlock()
	return nil
}

// OverrideFromDir parses every template file in dir, keyed by base name. A
// file named report.html replaces the built-in document.
func (rt *reportTemplates) OverrideFromDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(d.Name()) {
		case ".tmpl", ".gohtml", ".html":
		default:
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read template %q: %w", path, err)
		}
		return rt.register(d.Name(), string(b))
	})
}

func (rt *reportTemplates) lookup(name string) (*template.Template, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	t, ok := rt.templates[name]
	return t, ok
}
