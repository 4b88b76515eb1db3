package verify

import (
	"io/fs"
)

// Artifact is a source file that must exist before a verification build.
type Artifact struct {
	Path        string // slash-separated, relative to the project root
	Description string
}

// ArtifactStatus is one checked Artifact.
type ArtifactStatus struct {
	Artifact
	Present bool
}

// Checklist is an ordered set of required artifacts.
type Checklist []Artifact

// V3Checklist lists the sources the v3 firmware build depends on.
var V3Checklist = Checklist{
	{"include/v3/board_config_v3.h", "Board configuration"},
	{"src/v3/main_v3.cpp", "Main entry point"},
	{"src/v3/file_system_v3.cpp", "File system"},
	{"src/v3/data_manager_v3.cpp", "Data manager"},
	{"src/v3/ui_views_v3.cpp", "UI views"},
	{"src/v3/game_integration_v3.cpp", "Game integration"},
	{"src/v3/config_v3.cpp", "Runtime configuration"},
	{"src/v3/test_v3.cpp", "On-device tests"},
}

// Check stats every entry in fsys and returns all statuses in checklist
// order. ok is false if any entry is missing or is a directory.
func (c Checklist) Check(fsys fs.FS) (statuses []ArtifactStatus, ok bool) {
	ok = true
	for _, a := range c {
		info, err := fs.Stat(fsys, a.Path)
		present := err == nil && !info.IsDir()
		if !present {
			ok = false
		}
		statuses = append(statuses, ArtifactStatus{Artifact: a, Present: present})
	}
	return statuses, ok
}
