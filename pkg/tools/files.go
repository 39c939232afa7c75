package tools

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// maxFileSize bounds how much read_file returns.
const maxFileSize = 4 << 20

func (t *Toolkit) readFile(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	rel, _ := args["path"].(string)
	path, err := t.ws.Resolve(rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", rel)
	}
	if info.IsDir() {
		return nil, errors.Errorf("%s is a directory", rel)
	}
	if info.Size() > maxFileSize {
		return nil, errors.Errorf("%s is too large (%d bytes)", rel, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", rel)
	}
	return map[string]interface{}{
		"path":    t.ws.Rel(path),
		"content": string(data),
	}, nil
}

func (t *Toolkit) writeFile(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	rel, _ := args["path"].(string)
	content, _ := args["content"].(string)
	path, err := t.ws.Resolve(rel)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create parent directory for %s", rel)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", rel)
	}

	t.logger.Info("wrote file",
		zap.String("path", t.ws.Rel(path)),
		zap.Int("bytes", len(content)))

	return map[string]interface{}{
		"path":  t.ws.Rel(path),
		"bytes": float64(len(content)),
	}, nil
}

func (t *Toolkit) editFile(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	rel, _ := args["path"].(string)
	oldText, _ := args["old"].(string)
	newText, _ := args["new"].(string)
	if oldText == "" {
		return nil, errors.New("old text must not be empty")
	}

	path, err := t.ws.Resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", rel)
	}

	content := string(data)
	count := strings.Count(content, oldText)
	if count == 0 {
		return nil, errors.Errorf("old text not found in %s", rel)
	}
	if count > 1 {
		return nil, errors.Errorf("old text occurs %d times in %s, must be unique", count, rel)
	}

	updated := strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", rel)
	}

	t.logger.Info("edited file", zap.String("path", t.ws.Rel(path)))

	return map[string]interface{}{
		"path":  t.ws.Rel(path),
		"bytes": float64(len(updated)),
	}, nil
}

func (t *Toolkit) listFiles(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	rel, _ := args["path"].(string)
	if rel == "" {
		rel = "."
	}
	path, err := t.ws.Resolve(rel)
	if err != nil {
		return nil, err
	}

	var files []interface{}
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// node_modules and dotdirs are never interesting here
			name := d.Name()
			if p != path && (name == "node_modules" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, t.ws.Rel(p))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", rel)
	}

	return map[string]interface{}{
		"path":  t.ws.Rel(path),
		"files": files,
	}, nil
}
