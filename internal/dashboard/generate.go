package dashboard

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

const templateName = "sounder-dashboard.json.tmpl"

// Options selects the GreptimeDB tables the dashboard queries.
type Options struct {
	Title       string
	StatusTable string
	AlertTable  string
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}
}

// Write renders the dashboard JSON to w. The datasource uid is read from
// GREPTIMEDB_DATASOURCE_UID.
func Write(w io.Writer, opts Options) error {
	if opts.Title == "" {
		opts.Title = "Sounder device"
	}
	if opts.StatusTable == "" || opts.AlertTable == "" {
		return fmt.Errorf("status and alert table names are required")
	}
	t, err := template.New(templateName).Funcs(funcMap()).ParseFS(templates, "templates/"+templateName)
	if err != nil {
		return err
	}
	return t.Execute(w, opts)
}

// Render writes the rendered dashboard into outDir and returns its path.
func Render(outDir string, opts Options) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	outPath := filepath.Join(outDir, strings.TrimSuffix(templateName, ".tmpl"))
	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	if err := Write(f, opts); err != nil {
		f.Close()
		os.Remove(outPath)
		return "", err
	}
	return outPath, f.Close()
}
