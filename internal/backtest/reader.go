package backtest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// listFrames walks baseDir/entity and returns every .bin file path in
// ascending order. The path layout (YYYY-MM-DD/HH/mm-ss-fff.bin) sorts
// lexicographically in timestamp order, so a plain string sort of the
// full paths is sufficient — no need to parse timestamps out of the
// directory walk itself.
func listFrames(baseDir, entity string) ([]string, error) {
	root := filepath.Join(baseDir, entity)
	var paths []string
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".bin" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("backtest.listFrames: walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// loadFrames reads and decodes every frame under baseDir/entity, in
// timestamp order.
func loadFrames(baseDir, entity string) ([]*Frame, error) {
	paths, err := listFrames(baseDir, entity)
	if err != nil {
		return nil, err
	}
	frames := make([]*Frame, 0, len(paths))
	for _, p := range paths {
		f, err := readFrame(p)
		if err != nil {
			return nil, fmt.Errorf("backtest.loadFrames: %s: %w", p, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}
