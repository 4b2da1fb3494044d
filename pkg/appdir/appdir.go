package appdir

import (
	"log"
	"os"
	"path/filepath"
	"sync"
)

// EnvHome overrides the application directory when set.
const EnvHome = "IMGREV_HOME"

var (
	appDirCache string
	once        sync.Once
)

// AppDir returns the per-user state directory (~/.imgrev), creating it on first use.
func AppDir() string {
	once.Do(func() {
		dir := os.Getenv(EnvHome)
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatalf("%v", err)
			}
			dir = filepath.Join(home, ".imgrev")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("appdir: cannot create %s: %v", dir, err)
		}
		appDirCache = dir
	})
	return appDirCache
}

// Path joins elem onto AppDir.
func Path(elem ...string) string {
	return filepath.Join(append([]string{AppDir()}, elem...)...)
}
