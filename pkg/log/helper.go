package log

import (
	"fmt"
	"path/filepath"

	"imgrev-go/pkg/appdir"
)

// DefaultPath is the log database for app under the application directory.
func DefaultPath(app string) string {
	return filepath.Join(appdir.AppDir(), fmt.Sprintf("%s.db", app))
}
