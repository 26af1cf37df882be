package working_dir

import (
	"os"
	"path/filepath"

	"trackmux/src/lib/cerr"
)

type WorkingDir struct {
	root string
}

func NewWorkingDir(root string) (WorkingDir, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return WorkingDir{}, cerr.Field("root", root).
			Wrap(err).Error("Failed to generate absolute path for working directory")
	}

	_ = os.MkdirAll(absRoot, os.ModePerm)
	_ = os.MkdirAll(filepath.Join(absRoot, "tmp"), os.ModePerm)

	return WorkingDir{
		root: absRoot,
	}, nil
}

func (w WorkingDir) Root() string {
	return w.root
}

func (w WorkingDir) TempDir() string {
	return filepath.Join(w.root, "tmp")
}

// MakeScratchDir creates an exclusively owned directory under the temp root.
// The returned remove function tears the whole directory down and is safe to
// defer on every exit path.
func (w WorkingDir) MakeScratchDir(prefix string) (string, func(), error) {
	scratchDir, err := os.MkdirTemp(w.TempDir(), prefix+"-*")
	if err != nil {
		return "", nil, cerr.Field("temp_dir", w.TempDir()).
			Wrap(err).Error("Failed to create a scratch directory")
	}

	remove := func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			cerr.Log(cerr.Field("scratch_dir", scratchDir).
				Wrap(err).Error("Failed to remove scratch dir"))
		}
	}

	return scratchDir, remove, nil
}
