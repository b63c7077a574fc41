package cache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/msbuild-community/msbuild-dev-tools/internal/evaluator"
	"github.com/msbuild-community/msbuild-dev-tools/internal/logger"
	"github.com/msbuild-community/msbuild-dev-tools/internal/model"
	"github.com/msbuild-community/msbuild-dev-tools/internal/validator"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

// buildDocument derives everything the server answers from: the positioned
// XML tree, the reconciled model and the diagnostics. Evaluation failure is
// not fatal; the document then serves XML-only answers.
func buildDocument(snap *Snapshot, path string, version int, text string) *Document {
	xdoc := xml.Parse(text)

	local := &evaluator.Local{
		BaseDir:    filepath.Dir(path),
		ResolveSdk: sdkResolver(snap),
	}
	eval, err := local.Evaluate(context.Background(), xdoc)
	if err != nil {
		logger.Debugf("evaluation unavailable for %s: %v", path, err)
		eval = nil
	}
	m := model.Build(eval, xdoc)

	v := validator.NewValidator(m, snap.schema)
	if snap.config != nil {
		v.Disable(snap.config.Validator.Disable)
	}
	diags := v.ValidateDocument(context.Background())

	return &Document{
		Path:        path,
		Version:     version,
		Text:        text,
		XML:         xdoc,
		Model:       m,
		Diagnostics: diags,
	}
}

// sdkResolver resolves SDK ids against the configured SDK roots by directory
// existence.
func sdkResolver(snap *Snapshot) func(string) []string {
	if snap.config == nil || len(snap.config.Evaluator.SdkRoots) == 0 {
		return nil
	}
	roots := snap.config.Evaluator.SdkRoots
	return func(sdk string) []string {
		var out []string
		for _, root := range roots {
			candidate := filepath.Join(root, sdk)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				out = append(out, candidate)
			}
		}
		return out
	}
}
