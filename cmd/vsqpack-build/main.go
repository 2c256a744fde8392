// Command vsqpack-build is a debug/demo CLI: it ingests a directory tree of
// loose files into a VirtualSqPack, freezes it, and dumps the resulting
// index1/index2/datN streams to disk for manual inspection (e.g. loading
// them into a hex viewer or a real SqPack reader to diff against the
// game's own output).
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/mattn/go-isatty"

	"github.com/hxivmods/vsqpack"
)

func main() {
	expansion := flag.String("expansion", "ffxiv", "expansion name this archive belongs to")
	archive := flag.String("archive", "040000", "archive name (matched against TTMP DatFile fields)")
	maxFileSize := flag.Uint64("max_file_size", 2*1024*1024*1024, "maximum bytes per synthesized dat span")
	src := flag.String("src", "", "directory of loose files to ingest, recursively")
	out := flag.String("out", "", "directory to write index1/index2/dat0.. into")
	strict := flag.Bool("strict", true, "compute SHA-1 header signatures")
	flag.Parse()

	if *src == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: vsqpack-build -src <dir> -out <dir>")
		os.Exit(2)
	}

	if err := run(*expansion, *archive, *maxFileSize, *src, *out, *strict); err != nil {
		if err := runCleanups(); err != nil {
			log.Printf("cleanup: %v", err)
		}
		log.Fatal(err)
	}
	if err := runCleanups(); err != nil {
		log.Fatal(err)
	}
}

func run(expansion, archive string, maxFileSize uint64, src, out string, strict bool) error {
	ctx, cancel := interruptibleContext()
	defer cancel()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		logger.SetFlags(0)
	}

	v, err := vsqpack.NewVirtualSqPack(expansion, archive, maxFileSize)
	if err != nil {
		return err
	}
	v.SetLogger(logger)

	if err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		_, err = v.IngestLooseFileAtFullPath(src, rel, true)
		return err
	}); err != nil {
		return fmt.Errorf("ingesting %s: %w", src, err)
	}

	if err := v.Freeze(strict); err != nil {
		return fmt.Errorf("freeze: %w", err)
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}

	succeeded := false
	registerCleanup(func() error {
		if succeeded {
			return nil
		}
		logger.Printf("run failed, removing partial dump at %s", out)
		return os.RemoveAll(out)
	})

	if err := dumpStream(filepath.Join(out, "index1"), v.Index1Size(), v.ReadIndex1); err != nil {
		return err
	}
	if err := dumpStream(filepath.Join(out, "index2"), v.Index2Size(), v.ReadIndex2); err != nil {
		return err
	}
	for i := 0; i < v.SpanCount(); i++ {
		i := i
		name := filepath.Join(out, fmt.Sprintf("dat%d", i))
		size := v.DataSize(i)
		read := func(off uint64, p []byte) (int, error) { return v.ReadData(i, off, p) }
		if err := dumpStream(name, size, read); err != nil {
			return err
		}
	}

	succeeded = true
	logger.Printf("wrote %d span(s) to %s", v.SpanCount(), out)
	return nil
}

// dumpStream drains a logical stream of the given total size through read
// into one buffer of that size (stopping early on a zero-byte read) and
// writes what was read atomically to path.
func dumpStream(path string, size uint64, read func(off uint64, p []byte) (int, error)) error {
	buf := make([]byte, size)
	var off uint64
	for off < size {
		n, err := read(off, buf[off:])
		if err != nil {
			return fmt.Errorf("reading %s at %d: %w", path, off, err)
		}
		if n == 0 {
			break
		}
		off += uint64(n)
	}
	return renameio.WriteFile(path, buf[:off], 0o644)
}
