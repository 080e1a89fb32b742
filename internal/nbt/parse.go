package nbt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tag type IDs for the conventional named-binary-tag wire format.
const (
	tagEnd = iota
	tagByte
	tagShort
	tagInt
	tagLong
	tagFloat
	tagDouble
	tagByteArray
	tagString
	tagList
	tagCompound
	tagIntArray
	tagLongArray
)

type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("nbt: unexpected eof reading byte")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readN(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("nbt: unexpected eof reading %d bytes", n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readUint16() (uint16, error) {
	b, err := r.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) readInt16() (int16, error) {
	u, err := r.readUint16()
	return int16(u), err
}

func (r *reader) readInt32() (int32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *reader) readInt64() (int64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *reader) readFloat32() (float32, error) {
	i, err := r.readInt32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(i)), nil
}

func (r *reader) readFloat64() (float64, error) {
	i, err := r.readInt64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(i)), nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readUint16()
	if err != nil {
		return "", err
	}
	b, err := r.readN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// parse reads a root-level named compound tag (the conventional NBT framing:
// a single byte tag type, a string name, then the tag payload) and returns
// its value as a Node tree. Most upstream payloads are a single unnamed
// compound at the root; both framings are tolerated.
func parse(data []byte) (*Node, error) {
	r := &reader{buf: data}

	tagType, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if tagType == tagEnd {
		return emptyMap(), nil
	}
	if _, err := r.readString(); err != nil { // root name, discarded
		return nil, err
	}
	return readPayload(r, int(tagType))
}

func readPayload(r *reader, tagType int) (*Node, error) {
	switch tagType {
	case tagByte:
		v, err := r.readByte()
		return &Node{Value: int64(int8(v))}, err
	case tagShort:
		v, err := r.readInt16()
		return &Node{Value: int64(v)}, err
	case tagInt:
		v, err := r.readInt32()
		return &Node{Value: int64(v)}, err
	case tagLong:
		v, err := r.readInt64()
		return &Node{Value: v}, err
	case tagFloat:
		v, err := r.readFloat32()
		return &Node{Value: float64(v)}, err
	case tagDouble:
		v, err := r.readFloat64()
		return &Node{Value: v}, err
	case tagByteArray:
		n, err := r.readInt32()
		if err != nil {
			return nil, err
		}
		b, err := r.readN(int(n))
		if err != nil {
			return nil, err
		}
		list := make([]*Node, len(b))
		for i, v := range b {
			list[i] = &Node{Value: int64(int8(v))}
		}
		return &Node{List: list}, nil
	case tagString:
		v, err := r.readString()
		return &Node{Value: v}, err
	case tagList:
		childType, err := r.readByte()
		if err != nil {
			return nil, err
		}
		n, err := r.readInt32()
		if err != nil {
			return nil, err
		}
		list := make([]*Node, 0, max0(n))
		for i := int32(0); i < n; i++ {
			child, err := readPayload(r, int(childType))
			if err != nil {
				return nil, err
			}
			list = append(list, child)
		}
		return &Node{List: list}, nil
	case tagCompound:
		m := map[string]*Node{}
		for {
			childType, err := r.readByte()
			if err != nil {
				return nil, err
			}
			if childType == tagEnd {
				break
			}
			name, err := r.readString()
			if err != nil {
				return nil, err
			}
			child, err := readPayload(r, int(childType))
			if err != nil {
				return nil, err
			}
			m[name] = child
		}
		return &Node{Map: m}, nil
	case tagIntArray:
		n, err := r.readInt32()
		if err != nil {
			return nil, err
		}
		list := make([]*Node, 0, max0(n))
		for i := int32(0); i < n; i++ {
			v, err := r.readInt32()
			if err != nil {
				return nil, err
			}
			list = append(list, &Node{Value: int64(v)})
		}
		return &Node{List: list}, nil
	case tagLongArray:
		n, err := r.readInt32()
		if err != nil {
			return nil, err
		}
		list := make([]*Node, 0, max0(n))
		for i := int32(0); i < n; i++ {
			v, err := r.readInt64()
			if err != nil {
				return nil, err
			}
			list = append(list, &Node{Value: v})
		}
		return &Node{List: list}, nil
	default:
		return nil, fmt.Errorf("nbt: unknown tag type %d", tagType)
	}
}

func max0(n int32) int32 {
	if n < 0 {
		return 0
	}
	return n
}
