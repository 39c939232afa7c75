package tools

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Project templates
const (
	packageJSONTemplate = `{
  "name": "{{.Name}}",
  "private": true,
  "version": "0.1.0",
  "type": "module",
  "scripts": {
    "dev": "vite",
    "build": "tsc -b && vite build",
    "lint": "eslint .",
    "preview": "vite preview"
  },
  "dependencies": {
    "react": "^18.3.1",
    "react-dom": "^18.3.1"
  },
  "devDependencies": {
    "@types/react": "^18.3.3",
    "@types/react-dom": "^18.3.0",
    "@vitejs/plugin-react": "^4.3.1",
    "typescript": "^5.5.3",
    "vite": "^5.4.1"
  }
}
`

	viteConfigTemplate = `import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react'

export default defineConfig({
  plugins: [react()],
})
`

	indexHTMLTemplate = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>{{.Name}}</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/main.tsx"></script>
  </body>
</html>
`

	mainTSXTemplate = `import { StrictMode } from 'react'
import { createRoot } from 'react-dom/client'
import App from './App'
import './index.css'

createRoot(document.getElementById('root')!).render(
  <StrictMode>
    <App />
  </StrictMode>,
)
`

	appTSXTemplate = `function App() {
  return (
    <main>
      <h1>{{.Name}}</h1>
      <p>Edit <code>src/App.tsx</code> to get started.</p>
    </main>
  )
}

export default App
`

	indexCSSTemplate = `:root {
  font-family: system-ui, sans-serif;
  line-height: 1.5;
}

body {
  margin: 0;
  min-height: 100vh;
}
`

	componentTemplate = `export interface {{.Component}}Props {
  children?: React.ReactNode
}

export function {{.Component}}({ children }: {{.Component}}Props) {
  return <div className="{{.ClassName}}">{children}</div>
}
`
)

type projectData struct {
	Name string
}

type componentData struct {
	Component string
	ClassName string
}

// projectFiles maps relative paths to their templates, in creation
// order.
var projectFiles = []struct {
	path string
	tmpl string
}{
	{"package.json", packageJSONTemplate},
	{"vite.config.ts", viteConfigTemplate},
	{"index.html", indexHTMLTemplate},
	{"src/main.tsx", mainTSXTemplate},
	{"src/App.tsx", appTSXTemplate},
	{"src/index.css", indexCSSTemplate},
}

func (t *Toolkit) scaffoldProject(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	name, _ := args["name"].(string)
	if !validProjectName(name) {
		return nil, errors.Errorf("invalid project name %q", name)
	}

	dir, err := t.ws.Resolve(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, errors.Errorf("project %q already exists", name)
	}

	created := make([]string, 0, len(projectFiles))
	for _, f := range projectFiles {
		path := filepath.Join(dir, f.path)
		if err := renderTemplate(path, f.tmpl, projectData{Name: name}); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", f.path)
		}
		created = append(created, name+"/"+f.path)
	}

	t.logger.Info("scaffolded project",
		zap.String("project", name),
		zap.Int("files", len(created)))

	return map[string]interface{}{
		"project": name,
		"files":   toIfaceSlice(created),
	}, nil
}

func (t *Toolkit) addComponent(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	project, _ := args["project"].(string)
	component, _ := args["name"].(string)
	if !validProjectName(project) {
		return nil, errors.Errorf("invalid project name %q", project)
	}
	if !validComponentName(component) {
		return nil, errors.Errorf("invalid component name %q", component)
	}

	dir, err := t.ws.Resolve(project)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		return nil, errors.Errorf("project %q not found", project)
	}

	rel := filepath.Join("src", "components", component+".tsx")
	path := filepath.Join(dir, rel)
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Errorf("component %q already exists", component)
	}
	if err := renderTemplate(path, componentTemplate, componentData{
		Component: component,
		ClassName: kebabCase(component),
	}); err != nil {
		return nil, errors.Wrap(err, "failed to create component")
	}

	t.logger.Info("added component",
		zap.String("project", project),
		zap.String("component", component))

	return map[string]interface{}{
		"project": project,
		"path":    filepath.ToSlash(filepath.Join(project, rel)),
	}, nil
}

func renderTemplate(path, tmpl string, data interface{}) error {
	t, err := template.New(filepath.Base(path)).Parse(tmpl)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func validProjectName(name string) bool {
	if name == "" || len(name) > 100 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func validComponentName(name string) bool {
	if name == "" || len(name) > 100 {
		return false
	}
	if name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func kebabCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toIfaceSlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
