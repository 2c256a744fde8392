package vsqpack

import (
	"path/filepath"
	"strings"
)

// IngestLooseFile populates v with a single on-disk file, dispatching on
// its lowercased extension per spec.md §4.5 "From loose file": an empty
// file becomes an EmptyEntryProvider; ".tex"/".mdl" stand in for the
// on-the-fly texture/model packers; anything else falls back to the
// generic on-the-fly binary packer. spec is the destination PathSpec
// (normally derived from the archive-relative path the caller is placing
// the file under, which need not match its on-disk name).
func (v *VirtualSqPack) IngestLooseFile(path string, spec PathSpec, overwrite bool) (AddResult, error) {
	f, err := v.openFiles.open(path, nil)
	if err != nil {
		return AddResult{}, err
	}

	info, err := f.Stat()
	if err != nil {
		return AddResult{}, err
	}

	if info.Size() == 0 {
		return v.AddEntry(NewEmptyEntryProvider(spec), overwrite)
	}

	kind := OnTheFlyBinary
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tex":
		kind = OnTheFlyTexture
	case ".mdl":
		kind = OnTheFlyModel
	}

	provider := NewLooseFileEntryProvider(spec, kind, f, info.Size())
	return v.AddEntry(provider, overwrite)
}

// IngestLooseFileAtFullPath is IngestLooseFile with the destination
// PathSpec derived from relativePath itself (the common case: the file's
// on-disk path, relative to some root, doubles as its in-archive path).
func (v *VirtualSqPack) IngestLooseFileAtFullPath(root, relativePath string, overwrite bool) (AddResult, error) {
	spec := NewPathSpecFromFullPath(relativePath)
	return v.IngestLooseFile(filepath.Join(root, relativePath), spec, overwrite)
}
