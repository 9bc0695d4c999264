// Package project provides project file handling and persistence.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Ext is the project file extension.
const Ext = ".koloproj"

// File represents an annotation project file (.koloproj).
type File struct {
	Version  int       `json:"version"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Image directory (relative to project file)
	ImageDir string `json:"image_dir"`

	// Database path (relative to project file)
	DatabasePath string `json:"database,omitempty"`

	// Category names in id order. The registry is rebuilt from this
	// list on load so class indices stay stable across sessions.
	Categories []string `json:"categories"`

	// User settings
	Settings Settings `json:"settings,omitempty"`
}

// Settings holds user preferences for the project.
type Settings struct {
	ModelPath     string  `json:"model_path,omitempty"`
	ConfThreshold float64 `json:"conf_threshold,omitempty"`
	MergeSimilar  bool    `json:"merge_similar"`
}

// New creates a new project file with default settings.
func New(name, imageDir string) *File {
	now := time.Now()
	return &File{
		Version:  1,
		Name:     name,
		Created:  now,
		Modified: now,
		ImageDir: imageDir,
		Settings: Settings{
			ConfThreshold: 0.25,
			MergeSimilar:  true,
		},
	}
}

// Load loads a project from a .koloproj file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, err
	}

	return &proj, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SetImageDir sets the image directory (relative to project).
func (p *File) SetImageDir(projectPath, dir string) {
	rel, err := filepath.Rel(filepath.Dir(projectPath), dir)
	if err != nil {
		p.ImageDir = dir
	} else {
		p.ImageDir = rel
	}
	p.Modified = time.Now()
}

// GetImageDir returns the absolute path to the image directory.
func (p *File) GetImageDir(projectPath string) string {
	if p.ImageDir == "" {
		return filepath.Dir(projectPath)
	}
	if filepath.IsAbs(p.ImageDir) {
		return p.ImageDir
	}
	return filepath.Join(filepath.Dir(projectPath), p.ImageDir)
}

// GetDatabasePath returns the absolute path to the project database.
func (p *File) GetDatabasePath(projectPath string) string {
	if p.DatabasePath == "" {
		// Default: project_name.db
		base := projectPath[:len(projectPath)-len(filepath.Ext(projectPath))]
		return base + ".db"
	}
	if filepath.IsAbs(p.DatabasePath) {
		return p.DatabasePath
	}
	return filepath.Join(filepath.Dir(projectPath), p.DatabasePath)
}
