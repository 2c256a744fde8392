package sqbuild

import "golang.org/x/xerrors"

// Sentinel errors for the span allocator / freeze pipeline. Package vsqpack
// maps these onto its own public sentinels via errors.Is, so callers never
// need to import this internal package.
var (
	ErrInvalidArgument = xerrors.New("sqbuild: invalid argument")
	ErrFrozenMutation  = xerrors.New("sqbuild: builder is frozen")
	ErrNotFrozen       = xerrors.New("sqbuild: builder is not frozen")
	ErrDoubleFreeze    = xerrors.New("sqbuild: builder already frozen")
	ErrFormatOverflow  = xerrors.New("sqbuild: entry does not fit the SqPack format")
)
