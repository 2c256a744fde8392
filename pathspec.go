package vsqpack

import (
	"hash/crc32"
	"strings"
)

// EmptyHash marks a PathSpec field as absent. SqPack uses this sentinel
// rather than zero, which is itself a valid hash. (Under sqpackHash the
// empty string itself hashes to EmptyHash.)
const EmptyHash uint32 = 0xFFFFFFFF

// PathSpec addresses an asset by up to three independently computable
// hashes: the folder hash, the file-name hash, and the full-path hash. At
// least one of (folder_hash, name_hash) as a pair, or full_path_hash, must
// be present for the spec to be usable as a lookup key.
type PathSpec struct {
	FolderHash   uint32
	NameHash     uint32
	FullPathHash uint32
}

// sqpackHash is the hash used throughout SqPack indexes: the bitwise
// complement of the standard IEEE CRC-32 (commonly called "Jamcrc") over the
// lowercased, forward-slashed path component.
func sqpackHash(s string) uint32 {
	return ^crc32.ChecksumIEEE([]byte(s))
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, `\`, "/"))
}

// NewPathSpecFromFullPath derives all three hashes from a full asset path
// such as "chara/equipment/e0001/texture/v01_c0101e0001_top_d.tex". A path
// with no '/' gets only the full-path hash.
func NewPathSpecFromFullPath(fullPath string) PathSpec {
	full := normalize(fullPath)
	folder, name := EmptyHash, EmptyHash
	if i := strings.LastIndexByte(full, '/'); i >= 0 {
		folder = sqpackHash(full[:i])
		name = sqpackHash(full[i+1:])
	}
	return PathSpec{
		FolderHash:   folder,
		NameHash:     name,
		FullPathHash: sqpackHash(full),
	}
}

// NewPathSpecFromComponents derives a PathSpec from an already-split
// folder/file pair, without a full-path hash.
func NewPathSpecFromComponents(folder, file string) PathSpec {
	return PathSpec{
		FolderHash:   sqpackHash(normalize(folder)),
		NameHash:     sqpackHash(normalize(file)),
		FullPathHash: EmptyHash,
	}
}

// HasComponentHash reports whether both FolderHash and NameHash are present.
// Per the data model, one is present iff the other is.
func (p PathSpec) HasComponentHash() bool {
	return p.FolderHash != EmptyHash
}

// HasFullPathHash reports whether FullPathHash is present.
func (p PathSpec) HasFullPathHash() bool {
	return p.FullPathHash != EmptyHash
}

// ComponentKey returns the (folder_hash, name_hash) lookup key. Only valid
// when HasComponentHash is true.
func (p PathSpec) ComponentKey() (uint32, uint32) {
	return p.FolderHash, p.NameHash
}

// FullKey returns the full_path_hash lookup key. Only valid when
// HasFullPathHash is true.
func (p PathSpec) FullKey() uint32 {
	return p.FullPathHash
}

// Update merges newly-known hashes from other into p without overwriting
// fields p already has set. Used when an ingester discovers additional
// identifiers for an already-interned entry (e.g. a base-archive entry
// known only by its component hash later turns up in a TTMP manifest that
// also supplies the full-path hash).
func (p *PathSpec) Update(other PathSpec) {
	if !p.HasComponentHash() && other.HasComponentHash() {
		p.FolderHash = other.FolderHash
		p.NameHash = other.NameHash
	}
	if !p.HasFullPathHash() && other.HasFullPathHash() {
		p.FullPathHash = other.FullPathHash
	}
}
