package vsqpack

import "golang.org/x/xerrors"

// Sentinel errors. Callers should compare with xerrors.Is (or the stdlib
// errors.Is, which xerrors errors also satisfy).
var (
	// ErrInvalidArgument is returned by NewVirtualSqPack when max_file_size
	// exceeds sqlayout.MaxFileSizeLimit, and by the open-file cache when
	// both a path and a pre-opened file are absent.
	ErrInvalidArgument = xerrors.New("invalid argument")

	// ErrFrozenMutation is returned by any add_* operation called after
	// Freeze.
	ErrFrozenMutation = xerrors.New("builder is frozen: mutation rejected")

	// ErrNotFrozen is returned by any read_* operation called before
	// Freeze.
	ErrNotFrozen = xerrors.New("builder is not frozen: read rejected")

	// ErrDoubleFreeze is returned when Freeze is called a second time.
	ErrDoubleFreeze = xerrors.New("builder already frozen")

	// ErrFormatOverflow is returned when an entry's provider reports a
	// stream size that cannot be represented as a 32-bit block size, or
	// that cannot fit even in a freshly allocated span.
	ErrFormatOverflow = xerrors.New("entry does not fit the SqPack format")

	// ErrInputParse is returned when a TTMPL.mpl or choices.json payload is
	// malformed.
	ErrInputParse = xerrors.New("malformed input document")
)
