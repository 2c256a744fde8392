package vsqpack

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIngestLooseFileDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "a.tex"), []byte("texture bytes"))
	writeFile(t, filepath.Join(dir, "a.mdl"), []byte("model bytes"))
	writeFile(t, filepath.Join(dir, "a.bin"), []byte("binary bytes"))
	writeFile(t, filepath.Join(dir, "empty.bin"), nil)

	v, err := NewVirtualSqPack("ffxiv", "040000", 2*1024*1024*1024)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"a.tex", "a.mdl", "a.bin", "empty.bin"} {
		if _, err := v.IngestLooseFileAtFullPath(dir, name, false); err != nil {
			t.Fatalf("ingesting %s: %v", name, err)
		}
	}

	if len(v.store.entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(v.store.entries))
	}

	kindOf := func(name string) onTheFlyProviderKind {
		for _, e := range v.store.entries {
			spec := e.provider.PathSpec()
			if spec == NewPathSpecFromFullPath(name) {
				lp, ok := e.provider.(*LooseFileEntryProvider)
				if !ok {
					t.Fatalf("%s: expected LooseFileEntryProvider, got %T", name, e.provider)
				}
				return lp.Kind()
			}
		}
		t.Fatalf("entry for %s not found", name)
		return -1
	}

	if kindOf("a.tex") != OnTheFlyTexture {
		t.Error("a.tex should dispatch to OnTheFlyTexture")
	}
	if kindOf("a.mdl") != OnTheFlyModel {
		t.Error("a.mdl should dispatch to OnTheFlyModel")
	}
	if kindOf("a.bin") != OnTheFlyBinary {
		t.Error("a.bin should dispatch to OnTheFlyBinary")
	}

	for _, e := range v.store.entries {
		if e.provider.PathSpec() == NewPathSpecFromFullPath("empty.bin") {
			if _, ok := e.provider.(*EmptyEntryProvider); !ok {
				t.Fatalf("empty.bin: expected EmptyEntryProvider, got %T", e.provider)
			}
		}
	}
}

func TestIngestLooseFileSharesOpenFileCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "shared.bin"), []byte("shared bytes"))

	v, err := NewVirtualSqPack("ffxiv", "040000", 2*1024*1024*1024)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.IngestLooseFileAtFullPath(dir, "shared.bin", false); err != nil {
		t.Fatal(err)
	}
	if _, err := v.IngestLooseFileAtFullPath(dir, "shared.bin", true); err != nil {
		t.Fatal(err)
	}
	if len(v.openFiles.byIdent) != 1 {
		t.Fatalf("expected exactly one cached file identity, got %d", len(v.openFiles.byIdent))
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
