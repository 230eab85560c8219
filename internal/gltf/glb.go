package gltf

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
)

// GLB header.
type glbHeader [3]uint32

// Indices in glbHeader.
const (
	headerMagic   = 0
	headerVersion = 1
	headerLength  = 2
)

// GLB chunk header.
type glbChunk [2]uint32

// Indices in glbChunk.
const (
	chunkLength = 0
	chunkType   = 1
	// Then payload.
)

const (
	// glbHeader[headerMagic].
	magic = 0x46546c67

	// glbChunk[chunkType].
	typeJSON = 0x4e4f534a
	typeBIN  = 0x004e4942

	headerSize = 12
	chunkSize  = 8
)

// IsGLB reports whether b starts with a binary glTF (version 2) header.
func IsGLB(b []byte) bool {
	if len(b) < headerSize {
		return false
	}
	return binary.LittleEndian.Uint32(b) == magic && binary.LittleEndian.Uint32(b[4:]) == 2
}

// DecodeGLB decodes a complete GLB blob. It returns the document and the
// payload of the BIN chunk, which is nil when the blob has none.
func DecodeGLB(b []byte) (*Document, []byte, error) {
	if !IsGLB(b) {
		return nil, nil, newErr("not a GLB blob")
	}
	var h glbHeader
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, h[:]); err != nil {
		return nil, nil, newErr("invalid GLB header")
	}
	if int(h[headerLength]) > len(b) {
		return nil, nil, newErr("truncated GLB blob")
	}
	if h[headerLength] < headerSize {
		return nil, nil, newErr("invalid GLB length")
	}
	b = b[headerSize:h[headerLength]]

	var (
		doc *Document
		bin []byte
	)
	for first := true; len(b) > 0; first = false {
		if len(b) < chunkSize {
			return nil, nil, newErr("invalid GLB chunk")
		}
		var c glbChunk
		c[chunkLength] = binary.LittleEndian.Uint32(b)
		c[chunkType] = binary.LittleEndian.Uint32(b[4:])
		n := int(c[chunkLength])
		if n > len(b)-chunkSize {
			return nil, nil, newErr("truncated GLB chunk")
		}
		payload := b[chunkSize : chunkSize+n]
		b = b[chunkSize+n:]

		switch {
		case first && (c[chunkType] != typeJSON || n == 0):
			return nil, nil, newErr("invalid GLB chunk")
		case first:
			var err error
			if doc, err = Decode(bytes.NewReader(payload)); err != nil {
				return nil, nil, err
			}
		case c[chunkType] == typeBIN && bin == nil:
			bin = payload
		default:
			// Unknown chunk types must be ignored.
		}
	}
	if doc == nil {
		return nil, nil, newErr("GLB blob has no JSON chunk")
	}
	return doc, bin, nil
}

// EncodeGLB writes doc and bin as a GLB blob. The JSON chunk is padded
// with spaces and the BIN chunk with zeros to 4-byte boundaries. An empty
// bin omits the BIN chunk.
func EncodeGLB(w io.Writer, doc *Document, bin []byte) error {
	js, err := json.Marshal(doc)
	if err != nil {
		return newErr("encode JSON: " + err.Error())
	}
	js = pad(js, ' ')
	bin = pad(bin, 0)

	length := headerSize + chunkSize + len(js)
	if len(bin) > 0 {
		length += chunkSize + len(bin)
	}

	var buf bytes.Buffer
	buf.Grow(length)
	put := func(v ...uint32) {
		for _, x := range v {
			binary.Write(&buf, binary.LittleEndian, x)
		}
	}
	put(magic, 2, uint32(length))
	put(uint32(len(js)), typeJSON)
	buf.Write(js)
	if len(bin) > 0 {
		put(uint32(len(bin)), typeBIN)
		buf.Write(bin)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func pad(b []byte, c byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, c)
	}
	return b
}
