package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// deployManifest is written under the project on each deploy. Deploys
// are simulated: no artifact leaves the workspace.
type deployManifest struct {
	Project    string    `json:"project"`
	DeployID   string    `json:"deployId"`
	PreviewURL string    `json:"previewUrl"`
	DeployedAt time.Time `json:"deployedAt"`
}

func (t *Toolkit) deployProject(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	project, _ := args["project"].(string)
	if !validProjectName(project) {
		return nil, errors.Errorf("invalid project name %q", project)
	}

	dir, err := t.ws.Resolve(project)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		return nil, errors.Errorf("project %q not found", project)
	}

	id := uuid.New().String()
	manifest := deployManifest{
		Project:    project,
		DeployID:   id,
		PreviewURL: fmt.Sprintf("https://%s-%s.preview.forgeline.dev", project, id[:8]),
		DeployedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode deploy manifest")
	}
	manifestDir := filepath.Join(dir, ".sitesmith")
	if err := os.MkdirAll(manifestDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create manifest directory")
	}
	if err := os.WriteFile(filepath.Join(manifestDir, "deploy.json"), data, 0644); err != nil {
		return nil, errors.Wrap(err, "failed to write deploy manifest")
	}

	t.logger.Info("deployed project",
		zap.String("project", project),
		zap.String("deploy_id", id),
		zap.String("url", manifest.PreviewURL))

	return map[string]interface{}{
		"project":    project,
		"deployId":   id,
		"previewUrl": manifest.PreviewURL,
	}, nil
}

// allowedScripts are the only package.json scripts run_script will
// invoke. Long-running scripts like dev servers are excluded: every
// run must terminate within its deadline.
var allowedScripts = map[string]bool{
	"build":   true,
	"lint":    true,
	"test":    true,
	"preview": false,
	"dev":     false,
}

const (
	defaultScriptTimeout = 60 * time.Second
	maxScriptTimeout     = 5 * time.Minute
	maxScriptOutput      = 64 << 10
)

// RunScript runs an allowed package.json script outside the registry
// path. A timeoutSeconds of 0 applies the default deadline.
func (t *Toolkit) RunScript(ctx context.Context, project, script string, timeoutSeconds float64) (string, error) {
	args := map[string]interface{}{"project": project, "script": script}
	if timeoutSeconds > 0 {
		args["timeoutSeconds"] = timeoutSeconds
	}
	result, err := t.runScript(ctx, args)
	if err != nil {
		return "", err
	}
	out, _ := result["output"].(string)
	return out, nil
}

func (t *Toolkit) runScript(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	project, _ := args["project"].(string)
	script, _ := args["script"].(string)
	if !validProjectName(project) {
		return nil, errors.Errorf("invalid project name %q", project)
	}
	if !allowedScripts[script] {
		return nil, errors.Errorf("script %q is not allowed", script)
	}

	dir, err := t.ws.Resolve(project)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		return nil, errors.Errorf("project %q not found", project)
	}

	timeout := defaultScriptTimeout
	if secs, ok := args["timeoutSeconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
		if timeout > maxScriptTimeout {
			timeout = maxScriptTimeout
		}
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(runCtx, "npm", "run", script)
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	output := out.String()
	if len(output) > maxScriptOutput {
		output = output[:maxScriptOutput]
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errors.Errorf("script %q timed out after %s", script, timeout)
	}
	if runErr != nil {
		return nil, errors.Wrapf(runErr, "script %q failed: %s", script, output)
	}

	t.logger.Info("ran script",
		zap.String("project", project),
		zap.String("script", script),
		zap.Duration("elapsed", elapsed))

	return map[string]interface{}{
		"project": project,
		"script":  script,
		"output":  output,
	}, nil
}
