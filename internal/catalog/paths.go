package catalog

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/r2midi/presetctl/internal/vcs"
)

// CommunityDir is the per-manufacturer directory holding community collections.
const CommunityDir = "community"

var (
	validNameRe  = regexp.MustCompile(`^[A-Za-z0-9_\- .]+$`)
	unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9_\-.]`)
)

// ValidateName checks that a manufacturer, device, collection or folder name
// can be used as a single path component under the devices root.
func ValidateName(kind, name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%s name is required", kind)
	case strings.Contains(name, ".."), strings.ContainsAny(name, `/\`):
		return fmt.Errorf("invalid %s name %q: path separators are not allowed", kind, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("invalid %s name %q: must not start with a dot", kind, name)
	case !validNameRe.MatchString(name):
		return fmt.Errorf("invalid %s name %q: only letters, digits, spaces, '.', '_' and '-' are allowed", kind, name)
	}
	return nil
}

// SanitizeName turns an arbitrary label into a safe path component.
func SanitizeName(name string) string {
	s := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	s = unsafeNameRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "..", "_")
	if strings.HasPrefix(s, ".") {
		s = "x" + s
	}
	return s
}

// safeJoin joins components under root and refuses results that escape it.
func safeJoin(root string, parts ...string) (string, error) {
	joined := filepath.Join(append([]string{root}, parts...)...)
	if !vcs.IsSubPath(root, joined) {
		return "", fmt.Errorf("path %s escapes devices root", joined)
	}
	return joined, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isJSON(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".json") && !isHidden(name)
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
