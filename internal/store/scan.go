package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcus-hale/chartscan/constants"
	"github.com/marcus-hale/chartscan/internal/entity"
)

// ScanDirectory walks root in lexical order and loads every scan file with an
// allowed extension, skipping hidden files and directories. The returned
// order is the intake order, which in turn fixes batch and export ordering.
func ScanDirectory(root string) ([]entity.SourceFile, error) {
	var files []entity.SourceFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !constants.IsAllowedExt(filepath.Ext(name)) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, entity.SourceFile{Filename: name, Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
