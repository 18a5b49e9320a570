// Package modelprep assembles the model bundle: downloaded artifacts plus
// the generated serving script and dependency manifest under code/.
package modelprep

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates *template.Template

func init() {
	var err error
	templates, err = template.New("").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		panic(fmt.Sprintf("parse modelprep templates: %v", err))
	}
}

// CodeParams holds values for rendering the serving script and the
// dependency manifest.
type CodeParams struct {
	ModelID             string
	ContentType         string // request media type the handler accepts
	TransformersVersion string
	TorchVersion        string
}

// RenderInferenceScript renders the request-handler script.
func RenderInferenceScript(params CodeParams) (string, error) {
	return renderTemplate("inference.py.tmpl", params)
}

// RenderRequirements renders the dependency manifest.
func RenderRequirements(params CodeParams) (string, error) {
	return renderTemplate("requirements.txt.tmpl", params)
}

func renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// WriteCodeAssets writes the generated artifacts into modelDir/code.
func WriteCodeAssets(modelDir string, params CodeParams) error {
	codeDir := filepath.Join(modelDir, "code")
	if err := os.MkdirAll(codeDir, 0o755); err != nil {
		return fmt.Errorf("create code dir: %w", err)
	}

	script, err := RenderInferenceScript(params)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(codeDir, "inference.py"), []byte(script), 0o644); err != nil {
		return fmt.Errorf("write inference script: %w", err)
	}

	reqs, err := RenderRequirements(params)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(codeDir, "requirements.txt"), []byte(reqs), 0o644); err != nil {
		return fmt.Errorf("write requirements: %w", err)
	}
	return nil
}

// WriteExamplePayload writes the single-input example file the benchmark
// job replays against each candidate endpoint.
func WriteExamplePayload(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create payload dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write example payload: %w", err)
	}
	return nil
}
