package execution

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// writeAttachments writes attachments into workspaceDir, refusing paths that
// would land outside it.
func writeAttachments(workspaceDir string, attachments []Attachment) error {
	baseWorkspace := filepath.Clean(workspaceDir)
	if baseWorkspace == "" || baseWorkspace == "." {
		return fmt.Errorf("workspace is not set")
	}

	baseWithSep := baseWorkspace + string(os.PathSeparator)

	for _, att := range attachments {
		if att.Path == "" {
			continue
		}

		relPath := filepath.Clean(att.Path)
		if filepath.IsAbs(relPath) {
			return fmt.Errorf("attachment path %q must be relative", att.Path)
		}

		fullPath := filepath.Clean(filepath.Join(baseWorkspace, relPath))
		if !strings.HasPrefix(fullPath+string(os.PathSeparator), baseWithSep) {
			return fmt.Errorf("attachment path %q escapes workspace", att.Path)
		}

		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return fmt.Errorf("creating directory for attachment %q: %w", att.Path, err)
		}
		if err := os.WriteFile(fullPath, []byte(att.Content), 0644); err != nil {
			return fmt.Errorf("writing attachment %q: %w", att.Path, err)
		}
	}

	return nil
}
