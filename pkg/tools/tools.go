// Package tools implements the built-in site scaffolding toolset:
// project generation, sandboxed file editing, script runs and mock
// deploys, all rooted in a single workspace directory.
package tools

import (
	"context"

	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/validation"
)

// Options represents toolkit configuration options
type Options struct {
	// Root is the workspace directory all tools operate in
	Root string
	// Logger instance
	Logger *zap.Logger
}

// Toolkit holds the shared state behind the built-in tools.
type Toolkit struct {
	ws     *Workspace
	logger *zap.Logger
}

// New creates a toolkit rooted at opts.Root.
func New(opts Options) (*Toolkit, error) {
	ws, err := NewWorkspace(opts.Root)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Toolkit{ws: ws, logger: logger}, nil
}

// Workspace returns the toolkit's workspace.
func (t *Toolkit) Workspace() *Workspace {
	return t.ws
}

// RegisterAll registers every built-in tool on reg.
func (t *Toolkit) RegisterAll(reg *registry.Registry) error {
	defs := []registry.Tool{
		{
			Name:        "echo",
			Description: "Echo a message back, for connectivity checks",
			Input: validation.Contract{Fields: []validation.Field{
				{Name: "message", Kind: validation.KindString, Required: true},
			}},
			Output: validation.Contract{Fields: []validation.Field{
				{Name: "message", Kind: validation.KindString, Required: true},
			}},
			Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"message": args["message"]}, nil
			},
		},
		{
			Name:        "scaffold_project",
			Description: "Create a new React/Vite project skeleton in the workspace",
			Input: validation.Contract{Fields: []validation.Field{
				{Name: "name", Kind: validation.KindString, Required: true,
					Description: "Project name, lowercase letters, digits, - and _"},
			}},
			Handler: t.scaffoldProject,
		},
		{
			Name:        "add_component",
			Description: "Add a React component to an existing project",
			Input: validation.Contract{Fields: []validation.Field{
				{Name: "project", Kind: validation.KindString, Required: true},
				{Name: "name", Kind: validation.KindString, Required: true,
					Description: "Component name in PascalCase"},
			}},
			Handler: t.addComponent,
		},
		{
			Name:        "read_file",
			Description: "Read a file from the workspace",
			Input: validation.Contract{Fields: []validation.Field{
				{Name: "path", Kind: validation.KindString, Required: true},
			}},
			Output: validation.Contract{Fields: []validation.Field{
				{Name: "path", Kind: validation.KindString, Required: true},
				{Name: "content", Kind: validation.KindString, Required: true},
			}},
			Handler: t.readFile,
		},
		{
			Name:        "write_file",
			Description: "Create or overwrite a file in the workspace",
			Input: validation.Contract{Fields: []validation.Field{
				{Name: "path", Kind: validation.KindString, Required: true},
				{Name: "content", Kind: validation.KindString, Required: true},
			}},
			Handler: t.writeFile,
		},
		{
			Name:        "edit_file",
			Description: "Replace a unique text fragment in a workspace file",
			Input: validation.Contract{Fields: []validation.Field{
				{Name: "path", Kind: validation.KindString, Required: true},
				{Name: "old", Kind: validation.KindString, Required: true},
				{Name: "new", Kind: validation.KindString, Required: true},
			}},
			Handler: t.editFile,
		},
		{
			Name:        "list_files",
			Description: "List files under a workspace directory",
			Input: validation.Contract{Fields: []validation.Field{
				{Name: "path", Kind: validation.KindString,
					Description: "Directory to list, defaults to the workspace root"},
			}},
			Handler: t.listFiles,
		},
		{
			Name:        "run_script",
			Description: "Run an allowed package.json script with a deadline",
			Input: validation.Contract{Fields: []validation.Field{
				{Name: "project", Kind: validation.KindString, Required: true},
				{Name: "script", Kind: validation.KindString, Required: true,
					Enum: []string{"build", "lint", "test"}},
				{Name: "timeoutSeconds", Kind: validation.KindNumber},
			}},
			Handler: t.runScript,
		},
		{
			Name:        "deploy_project",
			Description: "Simulate a deploy and return a preview URL",
			Input: validation.Contract{Fields: []validation.Field{
				{Name: "project", Kind: validation.KindString, Required: true},
			}},
			Output: validation.Contract{Fields: []validation.Field{
				{Name: "project", Kind: validation.KindString, Required: true},
				{Name: "deployId", Kind: validation.KindString, Required: true},
				{Name: "previewUrl", Kind: validation.KindString, Required: true},
			}},
			Handler: t.deployProject,
		},
	}

	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}
