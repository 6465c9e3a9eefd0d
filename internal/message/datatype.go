package message

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/h5cat/internal/binary"
)

// DatatypeClass is the class of an HDF5 datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

// ByteOrder of a numeric datatype.
type ByteOrder uint8

const (
	OrderLE ByteOrder = 0
	OrderBE ByteOrder = 1
)

// StringPadding says how unused bytes of a fixed string are filled.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

// CharacterSet of a string datatype.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype describes the element type of a dataset or attribute.
type Datatype struct {
	Class   DatatypeClass
	Version uint8
	Size    uint32

	ByteOrder ByteOrder // fixed, float, bitfield and enum
	Signed    bool      // fixed and enum

	StringPadding  StringPadding
	CharSet        CharacterSet
	IsVarLenString bool

	Base      *Datatype // enum, array and variable-length
	Members   []Member  // compound fields or enum names
	ArrayDims []uint32

	bits  uint32 // class bit field
	props []byte // encoded properties
}

// Member is one field of a compound type or one name of an enum.
type Member struct {
	Name   string
	Offset uint32    // compound byte offset
	Type   *Datatype // compound field type
	Value  []byte    // enum value in the base encoding
}

func (m *Datatype) Type() Type { return TypeDatatype }

// IsString reports whether elements are fixed or variable-length strings.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.IsVarLenString)
}

func decodeDatatype(d *binpkg.Decoder) (*Datatype, error) {
	dt := readDatatype(d, 0)
	return dt, d.Err()
}

// maxTypeDepth bounds nesting of compound, array and variable-length types.
const maxTypeDepth = 32

func readDatatype(d *binpkg.Decoder, depth int) *Datatype {
	if depth > maxTypeDepth {
		d.Fail(fmt.Errorf("datatype nested deeper than %d", maxTypeDepth))
		return nil
	}
	cv := d.Uint8()
	lo, hi := d.Uint16(), d.Uint8()
	dt := &Datatype{
		Class:   DatatypeClass(cv & 0x0F),
		Version: cv >> 4,
		bits:    uint32(lo) | uint32(hi)<<16,
		Size:    d.Uint32(),
	}
	start := d.Pos()

	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.ByteOrder = ByteOrder(dt.bits & 0x01)
		dt.Signed = dt.bits&0x08 != 0
		d.Skip(4) // bit offset, precision
	case ClassFloatPoint:
		dt.ByteOrder = ByteOrder(dt.bits & 0x01)
		d.Skip(12)
	case ClassTime:
		dt.ByteOrder = ByteOrder(dt.bits & 0x01)
		d.Skip(2)
	case ClassString:
		dt.StringPadding = StringPadding(dt.bits & 0x0F)
		dt.CharSet = CharacterSet(dt.bits >> 4 & 0x0F)
	case ClassOpaque:
		d.Skip(int(dt.bits & 0xFF)) // padded tag
	case ClassCompound:
		dt.Members = make([]Member, dt.bits&0xFFFF)
		for i := range dt.Members {
			dt.Members[i] = readField(d, dt, depth)
		}
	case ClassReference:
	case ClassEnum:
		dt.Base = readDatatype(d, depth+1)
		if dt.Base != nil {
			dt.ByteOrder, dt.Signed = dt.Base.ByteOrder, dt.Base.Signed
		}
		dt.Members = make([]Member, dt.bits&0xFFFF)
		for i := range dt.Members {
			dt.Members[i].Name = readName(d, dt.Version)
		}
		for i := range dt.Members {
			dt.Members[i].Value = d.Bytes(int(dt.Base.sizeOrZero()))
		}
	case ClassVarLen:
		dt.IsVarLenString = dt.bits&0x0F == 1
		dt.StringPadding = StringPadding(dt.bits >> 4 & 0x0F)
		dt.CharSet = CharacterSet(dt.bits >> 8 & 0x0F)
		dt.Base = readDatatype(d, depth+1)
	case ClassArray:
		dt.ArrayDims = make([]uint32, d.Uint8())
		if dt.Version < 3 {
			d.Skip(3)
		}
		for i := range dt.ArrayDims {
			dt.ArrayDims[i] = d.Uint32()
		}
		if dt.Version < 3 {
			d.Skip(4 * len(dt.ArrayDims)) // permutation
		}
		dt.Base = readDatatype(d, depth+1)
	default:
		d.Fail(fmt.Errorf("unknown datatype class %d", dt.Class))
	}

	if d.Err() == nil {
		dt.props = d.Since(start)
	}
	return dt
}

func (m *Datatype) sizeOrZero() uint32 {
	if m == nil {
		return 0
	}
	return m.Size
}

// readName reads a member name. Versions 1 and 2 pad it to a multiple of
// eight bytes including the terminator.
func readName(d *binpkg.Decoder, version uint8) string {
	start := d.Pos()
	name := d.CString()
	if version < 3 {
		if n := (d.Pos() - start) % 8; n != 0 {
			d.Skip(8 - n)
		}
	}
	return name
}

func readField(d *binpkg.Decoder, parent *Datatype, depth int) Member {
	f := Member{Name: readName(d, parent.Version)}
	switch parent.Version {
	case 1:
		f.Offset = d.Uint32()
		d.Skip(1 + 3 + 4 + 4 + 16) // rank, reserved, permutation, reserved, dims
	case 2:
		f.Offset = d.Uint32()
	default:
		f.Offset = uint32(d.UintN(offsetWidth(parent.Size)))
	}
	f.Type = readDatatype(d, depth+1)
	return f
}

// offsetWidth is the byte width of compound member offsets in version 3.
func offsetWidth(size uint32) int {
	switch {
	case size < 1<<8:
		return 1
	case size < 1<<16:
		return 2
	case size < 1<<24:
		return 3
	default:
		return 4
	}
}

// Encode writes the datatype with its properties as decoded or built.
func (m *Datatype) Encode(e *binpkg.Encoder) {
	version := m.Version
	if version == 0 {
		version = 1
	}
	e.Uint8(uint8(m.Class) | version<<4)
	e.UintN(uint64(m.bits), 3)
	e.Uint32(m.Size)
	e.Write(m.props)
}

// NewFixedPointDatatype returns an integer type of size bytes.
func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	bits := uint32(order)
	if signed {
		bits |= 0x08
	}
	props := binary.LittleEndian.AppendUint16(nil, 0)
	props = binary.LittleEndian.AppendUint16(props, uint16(size*8))
	return &Datatype{
		Class:     ClassFixedPoint,
		Version:   1,
		Size:      size,
		ByteOrder: order,
		Signed:    signed,
		bits:      bits,
		props:     props,
	}
}

// NewFloatDatatype returns an IEEE 754 type of 4 or 8 bytes.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	// exponent location and size, mantissa location and size, bias
	layout := [5]uint32{23, 8, 0, 23, 127}
	if size == 8 {
		layout = [5]uint32{52, 11, 0, 52, 1023}
	}
	props := binary.LittleEndian.AppendUint16(nil, 0)
	props = binary.LittleEndian.AppendUint16(props, uint16(size*8))
	props = append(props, byte(layout[0]), byte(layout[1]), byte(layout[2]), byte(layout[3]))
	props = binary.LittleEndian.AppendUint32(props, layout[4])

	// Implied mantissa MSB and the sign bit position.
	bits := uint32(order) | 2<<4 | (size*8-1)<<8
	return &Datatype{
		Class:     ClassFloatPoint,
		Version:   1,
		Size:      size,
		ByteOrder: order,
		bits:      bits,
		props:     props,
	}
}

// NewStringDatatype returns a fixed-length string type.
func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Class:         ClassString,
		Version:       1,
		Size:          size,
		StringPadding: padding,
		CharSet:       charset,
		bits:          uint32(padding) | uint32(charset)<<4,
	}
}
