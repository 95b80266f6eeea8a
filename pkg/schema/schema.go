// Package schema implements the Schema Set: an immutable registry of named
// record/enum/fixed-byte types, keyed by a stable 128-bit schema fingerprint,
// plus the property-path resolution walk every other package builds on.
package schema

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/google/uuid"
)

// Kind discriminates the anonymous type algebra:
// Nullable(T) | Bool | I32 | I64 | U32 | U64 | F32 | F64 | Bytes | Buffer |
// String | StaticArray(T,N) | DynamicArray(T) | Map(K,V) | AssetRef(fp) |
// Named(fp).
type Kind int

const (
	KindNullable Kind = iota
	KindBool
	KindI32
	KindI64
	KindU32
	KindU64
	KindF32
	KindF64
	KindBytes
	KindBuffer
	KindString
	KindStaticArray
	KindDynamicArray
	KindMap
	KindAssetRef
	KindNamed
)

// Type is one node of the anonymous type algebra. Only the fields relevant
// to Kind are populated; the rest are zero.
type Type struct {
	Kind Kind

	Elem *Type // Nullable / StaticArray / DynamicArray element, Map value
	Key  *Type // Map key

	Length uint32 // StaticArray

	// NamedRef/selfRef identify the Named/AssetRef target by name at
	// construction time; ResolveRefs (run by the Set during AddRecord)
	// turns this into NamedFingerprint. A field that refers to the record
	// currently being registered (a self-referential type, e.g. a tree
	// node with children of its own type) cannot know its own fingerprint
	// yet, so it is flagged selfRef and patched to the real fingerprint
	// once the enclosing record's fingerprint has been computed.
	NamedRef          string
	selfRef           bool
	NamedFingerprint  idset.SchemaFingerprint
}

var (
	Bool   = Type{Kind: KindBool}
	I32    = Type{Kind: KindI32}
	I64    = Type{Kind: KindI64}
	U32    = Type{Kind: KindU32}
	U64    = Type{Kind: KindU64}
	F32    = Type{Kind: KindF32}
	F64    = Type{Kind: KindF64}
	Bytes  = Type{Kind: KindBytes}
	Buffer = Type{Kind: KindBuffer}
	String = Type{Kind: KindString}
)

// NullableOf wraps t as Nullable(t).
func NullableOf(t Type) Type { return Type{Kind: KindNullable, Elem: &t} }

// StaticArrayOf builds StaticArray(t, n).
func StaticArrayOf(t Type, n uint32) Type {
	return Type{Kind: KindStaticArray, Elem: &t, Length: n}
}

// DynamicArrayOf builds DynamicArray(t).
func DynamicArrayOf(t Type) Type { return Type{Kind: KindDynamicArray, Elem: &t} }

// MapOf builds Map(k, v).
func MapOf(k, v Type) Type { return Type{Kind: KindMap, Key: &k, Elem: &v} }

// NamedOf builds a reference to another (already registered, or currently
// being registered) named type by name, resolved to a fingerprint when the
// owning record is added to a Set.
func NamedOf(name string) Type { return Type{Kind: KindNamed, NamedRef: name} }

// AssetRefOf builds a reference-to-asset type constrained to the record
// schema named by name, resolved the same way as NamedOf.
func AssetRefOf(name string) Type { return Type{Kind: KindAssetRef, NamedRef: name} }

// Field is one ordered field of a record: "(name,
// aliases, type, markup)".
type Field struct {
	Name    string
	Aliases []string
	Type    Type
	Markup  map[string]string
}

// EnumSymbol is one named value of an enum named type.
type EnumSymbol struct {
	Name    string
	Value   int32
	Aliases []string
}

// NamedKind discriminates the three named-type shapes the Schema Set holds.
type NamedKind int

const (
	NamedRecord NamedKind = iota
	NamedEnum
	NamedFixedBytes
)

// NamedType is one immutable named type held by a Set: a record, an enum,
// or a fixed-size byte blob.
type NamedType struct {
	Kind        NamedKind
	Name        string
	Fingerprint idset.SchemaFingerprint

	Fields  []Field      // NamedRecord
	Symbols []EnumSymbol // NamedEnum
	Size    uint32       // NamedFixedBytes
}

// FieldByName returns the field matching name, checking aliases too, per the
// "UnknownField" lookup this describes.
func (nt *NamedType) FieldByName(name string) (*Field, bool) {
	for i := range nt.Fields {
		f := &nt.Fields[i]
		if f.Name == name {
			return f, true
		}
		for _, alias := range f.Aliases {
			if alias == name {
				return f, true
			}
		}
	}
	return nil, false
}

var (
	ErrUnknownType       = errors.New("schema: unknown type")
	ErrUnknownField      = errors.New("schema: unknown field")
	ErrUnknownEnumSymbol = errors.New("schema: unknown enum symbol")
	ErrTypeAlreadyExists = errors.New("schema: type already registered")
	ErrUnresolvablePath  = errors.New("schema: unresolvable path")
)

// Set is the immutable-after-construction registry of named types, keyed by
// a stable 128-bit schema fingerprint. Construction (Add*) is
// single-threaded by convention; once built, a Set is read-only and safe
// for concurrent use by many importers/builders.
type Set struct {
	byName        map[string]*NamedType
	byFingerprint map[idset.SchemaFingerprint]*NamedType
}

// NewSet returns an empty registry.
func NewSet() *Set {
	return &Set{
		byName:        make(map[string]*NamedType),
		byFingerprint: make(map[idset.SchemaFingerprint]*NamedType),
	}
}

// FindNamedType looks up a named type by name.
func (s *Set) FindNamedType(name string) (*NamedType, error) {
	nt, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return nt, nil
}

// FindByFingerprint looks up a named type by its schema fingerprint.
func (s *Set) FindByFingerprint(fp idset.SchemaFingerprint) (*NamedType, error) {
	nt, ok := s.byFingerprint[fp]
	if !ok {
		return nil, fmt.Errorf("%w: fingerprint %s", ErrUnknownType, fp)
	}
	return nt, nil
}

// AddRecord registers a record named type with the given ordered fields.
// Fields may reference name itself (a self-referential record) via NamedOf
// or AssetRefOf; that reference is resolved to name's own fingerprint once
// computed below.
func (s *Set) AddRecord(name string, fields []Field) (*NamedType, error) {
	if _, exists := s.byName[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrTypeAlreadyExists, name)
	}

	resolved := make([]Field, len(fields))
	for i, f := range fields {
		t, err := s.resolveTypeRefs(f.Type, name)
		if err != nil {
			return nil, fmt.Errorf("schema: field %q of %q: %w", f.Name, name, err)
		}
		f.Type = t
		resolved[i] = f
	}

	nt := &NamedType{Kind: NamedRecord, Name: name, Fields: resolved}
	nt.Fingerprint = fingerprintRecord(name, resolved)
	patchSelfRefs(nt.Fields, nt.Fingerprint)

	s.byName[name] = nt
	s.byFingerprint[nt.Fingerprint] = nt
	return nt, nil
}

// AddEnum registers an enum named type.
func (s *Set) AddEnum(name string, symbols []EnumSymbol) (*NamedType, error) {
	if _, exists := s.byName[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrTypeAlreadyExists, name)
	}
	nt := &NamedType{Kind: NamedEnum, Name: name, Symbols: symbols}
	nt.Fingerprint = fingerprintEnum(name, symbols)
	s.byName[name] = nt
	s.byFingerprint[nt.Fingerprint] = nt
	return nt, nil
}

// AddFixedBytes registers a fixed-size byte blob named type.
func (s *Set) AddFixedBytes(name string, size uint32) (*NamedType, error) {
	if _, exists := s.byName[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrTypeAlreadyExists, name)
	}
	nt := &NamedType{Kind: NamedFixedBytes, Name: name, Size: size}
	nt.Fingerprint = fingerprintFixedBytes(name, size)
	s.byName[name] = nt
	s.byFingerprint[nt.Fingerprint] = nt
	return nt, nil
}

// resolveTypeRefs walks t, resolving every Named/AssetRef reference against
// the set's already-registered types, or flagging it selfRef when it names
// selfName (the record currently being added).
func (s *Set) resolveTypeRefs(t Type, selfName string) (Type, error) {
	switch t.Kind {
	case KindNullable, KindStaticArray, KindDynamicArray:
		elem, err := s.resolveTypeRefs(*t.Elem, selfName)
		if err != nil {
			return Type{}, err
		}
		t.Elem = &elem
		return t, nil
	case KindMap:
		key, err := s.resolveTypeRefs(*t.Key, selfName)
		if err != nil {
			return Type{}, err
		}
		val, err := s.resolveTypeRefs(*t.Elem, selfName)
		if err != nil {
			return Type{}, err
		}
		t.Key, t.Elem = &key, &val
		return t, nil
	case KindNamed, KindAssetRef:
		if t.NamedRef == selfName {
			t.selfRef = true
			return t, nil
		}
		target, ok := s.byName[t.NamedRef]
		if !ok {
			return Type{}, fmt.Errorf("%w: %q", ErrUnknownType, t.NamedRef)
		}
		t.NamedFingerprint = target.Fingerprint
		return t, nil
	default:
		return t, nil
	}
}

// patchSelfRefs replaces every selfRef marker left by resolveTypeRefs with
// fp, the enclosing record's own fingerprint, now that it is known.
func patchSelfRefs(fields []Field, fp idset.SchemaFingerprint) {
	var walk func(t *Type)
	walk = func(t *Type) {
		switch t.Kind {
		case KindNullable, KindStaticArray, KindDynamicArray:
			walk(t.Elem)
		case KindMap:
			walk(t.Key)
			walk(t.Elem)
		case KindNamed, KindAssetRef:
			if t.selfRef {
				t.NamedFingerprint = fp
				t.selfRef = false
			}
		}
	}
	for i := range fields {
		walk(&fields[i].Type)
	}
}

// --- fingerprinting -------------------------------------------------------
//
// Fingerprints are hash128 over a canonical byte encoding of structure, so
// that two independently-built Sets assign identical fingerprints to
// structurally identical named types. Self-referential Named
// fields encode a fixed sentinel tag rather than recursing, which keeps the
// encoding well-defined and deterministic without needing the enclosing
// record's not-yet-computed fingerprint.

const (
	tagSelfRef byte = 0xFF
)

func encodeType(b *bytes.Buffer, t Type) {
	b.WriteByte(byte(t.Kind))
	switch t.Kind {
	case KindNullable, KindDynamicArray:
		encodeType(b, *t.Elem)
	case KindStaticArray:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], t.Length)
		b.Write(lenBuf[:])
		encodeType(b, *t.Elem)
	case KindMap:
		encodeType(b, *t.Key)
		encodeType(b, *t.Elem)
	case KindNamed, KindAssetRef:
		if t.selfRef {
			b.WriteByte(tagSelfRef)
			return
		}
		b.Write(t.NamedFingerprint[:])
	}
}

func fingerprintRecord(name string, fields []Field) idset.SchemaFingerprint {
	var b bytes.Buffer
	b.WriteByte(byte(NamedRecord))
	writeLenPrefixed(&b, name)
	for _, f := range fields {
		writeLenPrefixed(&b, f.Name)
		encodeType(&b, f.Type)
	}
	return idset.Hash128(b.Bytes())
}

func fingerprintEnum(name string, symbols []EnumSymbol) idset.SchemaFingerprint {
	var b bytes.Buffer
	b.WriteByte(byte(NamedEnum))
	writeLenPrefixed(&b, name)
	for _, sym := range symbols {
		writeLenPrefixed(&b, sym.Name)
		var valBuf [4]byte
		binary.BigEndian.PutUint32(valBuf[:], uint32(sym.Value))
		b.Write(valBuf[:])
	}
	return idset.Hash128(b.Bytes())
}

func fingerprintFixedBytes(name string, size uint32) idset.SchemaFingerprint {
	var b bytes.Buffer
	b.WriteByte(byte(NamedFixedBytes))
	writeLenPrefixed(&b, name)
	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], size)
	b.Write(sizeBuf[:])
	return idset.Hash128(b.Bytes())
}

func writeLenPrefixed(b *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	b.Write(lenBuf[:])
	b.WriteString(s)
}

// --- property path resolution ---------------------------------------------

// DynamicArrayAccess records a (dynamic-array path, accessed UUID) pair
// collected while resolving a path's liveness-check list.
type DynamicArrayAccess struct {
	Path Path
	Key  idset.ID
}

// Resolution is the result of resolving a property path against a root
// record: the terminal type plus the ancestor lists that drive all
// downstream resolution routines (null-ancestor and replace-mode checks).
type Resolution struct {
	Terminal Type

	// NullableAncestors holds, in descent order, the full path to every
	// Nullable field crossed while resolving — used for null-ancestor
	// checks.
	NullableAncestors []Path

	// ReplaceModeAncestors holds the full path to every dynamic-array or
	// map container crossed — used for replace-mode-ancestor checks.
	ReplaceModeAncestors []Path

	DynamicArrayAccesses []DynamicArrayAccess
}

// ResolvePropertySchema walks path starting at root, returning the terminal
// type and its ancestor lists.
func (s *Set) ResolvePropertySchema(root *NamedType, path Path) (*Resolution, error) {
	if root.Kind != NamedRecord {
		return nil, fmt.Errorf("schema: %q is not a record", root.Name)
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrUnresolvablePath)
	}

	res := &Resolution{}
	first := path[0]
	if first.Kind != SegField {
		return nil, fmt.Errorf("%w: path must begin with a field", ErrUnresolvablePath)
	}
	field, ok := root.FieldByName(first.Field)
	if !ok {
		return nil, fmt.Errorf("%w: %q on %q", ErrUnknownField, first.Field, root.Name)
	}

	cur := field.Type
	prefix := Path{first}

	for _, seg := range path[1:] {
		next, err := s.descend(cur, seg, prefix, res)
		if err != nil {
			return nil, err
		}
		cur = next
		prefix = prefix.With(seg)
	}

	// A Nullable terminal with no trailing "value" segment is itself a
	// null-checkable ancestor of its own resolution.
	if cur.Kind == KindNullable {
		res.NullableAncestors = append(res.NullableAncestors, prefix)
	}

	res.Terminal = cur
	return res, nil
}

// descend advances cur by one path segment, recording ancestor bookkeeping
// into res as it goes. prefix is the path to cur itself (before seg).
func (s *Set) descend(cur Type, seg Segment, prefix Path, res *Resolution) (Type, error) {
	switch cur.Kind {
	case KindNullable:
		res.NullableAncestors = append(res.NullableAncestors, prefix)
		if seg.Kind != SegNullableValue {
			return Type{}, fmt.Errorf("%w: expected nullable descent at %s", ErrUnresolvablePath, prefix)
		}
		return *cur.Elem, nil

	case KindStaticArray:
		if seg.Kind != SegStaticIndex {
			return Type{}, fmt.Errorf("%w: expected static index at %s", ErrUnresolvablePath, prefix)
		}
		if seg.StaticIndex >= cur.Length {
			return Type{}, fmt.Errorf("%w: index %d out of bounds (len %d) at %s", ErrUnresolvablePath, seg.StaticIndex, cur.Length, prefix)
		}
		return *cur.Elem, nil

	case KindDynamicArray:
		res.ReplaceModeAncestors = append(res.ReplaceModeAncestors, prefix)
		if seg.Kind != SegDynamicKey {
			return Type{}, fmt.Errorf("%w: expected dynamic-array key at %s", ErrUnresolvablePath, prefix)
		}
		res.DynamicArrayAccesses = append(res.DynamicArrayAccesses, DynamicArrayAccess{Path: prefix, Key: seg.DynamicKey})
		return *cur.Elem, nil

	case KindMap:
		res.ReplaceModeAncestors = append(res.ReplaceModeAncestors, prefix)
		if seg.Kind != SegMapKey {
			return Type{}, fmt.Errorf("%w: expected map key at %s", ErrUnresolvablePath, prefix)
		}
		return *cur.Elem, nil

	case KindNamed:
		nt, err := s.FindByFingerprint(cur.NamedFingerprint)
		if err != nil {
			return Type{}, err
		}
		if nt.Kind != NamedRecord {
			return Type{}, fmt.Errorf("%w: cannot descend into non-record %q at %s", ErrUnresolvablePath, nt.Name, prefix)
		}
		if seg.Kind != SegField {
			return Type{}, fmt.Errorf("%w: expected field at %s", ErrUnresolvablePath, prefix)
		}
		field, ok := nt.FieldByName(seg.Field)
		if !ok {
			return Type{}, fmt.Errorf("%w: %q on %q", ErrUnknownField, seg.Field, nt.Name)
		}
		return field.Type, nil

	default:
		return Type{}, fmt.Errorf("%w: cannot descend past terminal type at %s", ErrUnresolvablePath, prefix)
	}
}

// ParsePropertyPath parses the dotted textual form of a property path
// into a structured Path, disambiguating each segment by
// walking root's schema as it goes — the same textual token means a field
// name, a map key, a static index or a dynamic-array UUID depending on the
// type encountered at that point, so this cannot be done context-free (see
// path.go).
func (s *Set) ParsePropertyPath(root *NamedType, text string) (Path, error) {
	tokens := splitDotted(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrUnresolvablePath)
	}
	if root.Kind != NamedRecord {
		return nil, fmt.Errorf("schema: %q is not a record", root.Name)
	}

	field, ok := root.FieldByName(tokens[0])
	if !ok {
		return nil, fmt.Errorf("%w: %q on %q", ErrUnknownField, tokens[0], root.Name)
	}
	path := Path{FieldSeg(tokens[0])}
	cur := field.Type

	for _, tok := range tokens[1:] {
		seg, next, err := s.classify(cur, tok)
		if err != nil {
			return nil, fmt.Errorf("schema: parsing path %q: %w", text, err)
		}
		path = append(path, seg)
		cur = next
	}
	return path, nil
}

// classify turns one raw textual token into a Segment, given the type it is
// being applied against, and returns the type one level deeper.
func (s *Set) classify(cur Type, tok string) (Segment, Type, error) {
	switch cur.Kind {
	case KindNullable:
		if tok != "value" {
			return Segment{}, Type{}, fmt.Errorf("%w: expected \"value\", got %q", ErrUnresolvablePath, tok)
		}
		return NullableValueSeg(), *cur.Elem, nil

	case KindStaticArray:
		idx, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return Segment{}, Type{}, fmt.Errorf("%w: invalid static index %q", ErrUnresolvablePath, tok)
		}
		return StaticIndexSeg(uint32(idx)), *cur.Elem, nil

	case KindDynamicArray:
		id, err := uuid.Parse(tok)
		if err != nil {
			return Segment{}, Type{}, fmt.Errorf("%w: invalid dynamic-array key %q", ErrUnresolvablePath, tok)
		}
		return DynamicKeySeg(idset.ID(id)), *cur.Elem, nil

	case KindMap:
		return MapKeySeg(tok), *cur.Elem, nil

	case KindNamed:
		nt, err := s.FindByFingerprint(cur.NamedFingerprint)
		if err != nil {
			return Segment{}, Type{}, err
		}
		if nt.Kind != NamedRecord {
			return Segment{}, Type{}, fmt.Errorf("%w: cannot descend into non-record %q", ErrUnresolvablePath, nt.Name)
		}
		field, ok := nt.FieldByName(tok)
		if !ok {
			return Segment{}, Type{}, fmt.Errorf("%w: %q on %q", ErrUnknownField, tok, nt.Name)
		}
		return FieldSeg(tok), field.Type, nil

	default:
		return Segment{}, Type{}, fmt.Errorf("%w: cannot descend past terminal type", ErrUnresolvablePath)
	}
}
