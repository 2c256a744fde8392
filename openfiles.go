package vsqpack

import (
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// fileIdentity canonicalizes a backing file by device+inode rather than by
// string path, so a symlink, a bind mount, or simply the same path spelled
// two different ways all resolve to the one open handle (matching the
// teacher's own use of golang.org/x/sys/unix for low-level file identity in
// internal/squashfs, there for permission bits rather than identity).
type fileIdentity struct {
	dev uint64
	ino uint64
}

// openFileCache de-duplicates opened backing files across every ingester
// that calls into the same VirtualSqPack, keyed by canonical (device, inode)
// identity rather than by path string (spec.md §4.5, §9 "Global state": the
// cache is per-builder, not process-wide). Concurrent opens of the same
// path collapse onto a single os.Open call via singleflight, since
// ingestion is the one place spec.md explicitly allows layering concurrency
// atop an otherwise single-owner builder (§5 "Cancellation").
type openFileCache struct {
	mu      sync.Mutex
	byIdent map[fileIdentity]*os.File

	group singleflight.Group
}

func newOpenFileCache() *openFileCache {
	return &openFileCache{byIdent: make(map[fileIdentity]*os.File)}
}

// open returns a shared, non-owning *os.File for path (or registers
// alreadyOpened, if non-nil, under its own canonical identity). Passing an
// empty path with a nil alreadyOpened is ErrInvalidArgument, matching the
// original OpenFile's "curItemPath and alreadyOpenedFile cannot both be
// empty" check.
func (c *openFileCache) open(path string, alreadyOpened *os.File) (*os.File, error) {
	if path == "" && alreadyOpened == nil {
		return nil, xerrors.Errorf("open backing file: %w", ErrInvalidArgument)
	}

	f := alreadyOpened
	if f == nil {
		v, err, _ := c.group.Do(path, func() (interface{}, error) {
			return os.Open(path)
		})
		if err != nil {
			return nil, xerrors.Errorf("opening %q: %w", path, err)
		}
		f = v.(*os.File)
	}

	ident, err := identify(f)
	if err != nil {
		return nil, xerrors.Errorf("stat %q: %w", f.Name(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byIdent[ident]; ok {
		if f != existing && alreadyOpened == nil {
			f.Close()
		}
		return existing, nil
	}
	c.byIdent[ident] = f
	return f, nil
}

func identify(f *os.File) (fileIdentity, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return fileIdentity{}, err
	}
	return fileIdentity{dev: uint64(st.Dev), ino: st.Ino}, nil
}
