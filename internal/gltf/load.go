package gltf

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Model is a decoded glTF document together with the bytes of every buffer
// it declares. Buffers[i] holds the payload of Doc.Buffers[i].
type Model struct {
	Path    string
	Doc     *Document
	Buffers [][]byte
}

// Loader opens glTF assets from disk. It holds no global state, so a single
// Loader may be shared by concurrent pipeline stages.
type Loader struct {
	// ReadFile reads a file by path. It defaults to os.ReadFile and is
	// replaceable in tests.
	ReadFile func(name string) ([]byte, error)
}

// NewLoader creates a Loader that reads from the local file system.
func NewLoader() *Loader {
	return &Loader{ReadFile: os.ReadFile}
}

// Load reads the asset at path, which may be a .glb blob or a .gltf JSON
// file. External buffers are resolved relative to the asset's directory and
// data URIs are decoded. The document is checked before any buffer is
// resolved.
//
// Load returns ctx.Err() as soon as ctx is done, even when a read is still
// blocked; the abandoned read finishes in the background.
func (l *Loader) Load(ctx context.Context, path string) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		m   *Model
		err error
	}
	ch := make(chan result, 1)
	go func() {
		m, err := l.load(ctx, path)
		ch <- result{m, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.m, r.err
	}
}

// ReadRelative reads a file referenced by uri from an asset at path. uri is
// percent-decoded and resolved against the asset's directory.
func (l *Loader) ReadRelative(path, uri string) ([]byte, error) {
	name, err := url.PathUnescape(uri)
	if err != nil {
		return nil, err
	}
	return l.read(filepath.Join(filepath.Dir(path), filepath.FromSlash(name)))
}

func (l *Loader) read(name string) ([]byte, error) {
	if l.ReadFile == nil {
		return os.ReadFile(name)
	}
	return l.ReadFile(name)
}

func (l *Loader) load(ctx context.Context, path string) (*Model, error) {
	b, err := l.read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var (
		doc *Document
		bin []byte
	)
	if IsGLB(b) {
		doc, bin, err = DecodeGLB(b)
	} else {
		doc, err = Decode(bytes.NewReader(b))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := doc.Check(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m := &Model{Path: path, Doc: doc, Buffers: make([][]byte, len(doc.Buffers))}
	for i, buf := range doc.Buffers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var data []byte
		switch {
		case buf.URI == "" && i == 0 && bin != nil:
			data = bin
		case buf.URI == "":
			return nil, fmt.Errorf("%s: %w", path, newErr(fmt.Sprintf("buffers[%d] has no data", i)))
		case strings.HasPrefix(buf.URI, "data:"):
			if data, err = DecodeDataURI(buf.URI); err != nil {
				return nil, fmt.Errorf("%s: buffers[%d]: %w", path, i, err)
			}
		default:
			if data, err = l.ReadRelative(path, buf.URI); err != nil {
				return nil, fmt.Errorf("%s: buffers[%d]: %w", path, i, err)
			}
		}
		if int64(len(data)) < buf.ByteLength {
			return nil, fmt.Errorf("%s: %w", path, newErr(fmt.Sprintf("buffers[%d] is shorter than byteLength", i)))
		}
		m.Buffers[i] = data[:buf.ByteLength]
	}

	for i, bv := range doc.BufferViews {
		n := int64(len(m.Buffers[bv.Buffer]))
		if bv.ByteOffset > n || bv.ByteLength > n-bv.ByteOffset {
			return nil, fmt.Errorf("%s: %w", path, invalid("bufferViews[%d] exceeds its buffer", i))
		}
	}
	return m, nil
}

// DecodeDataURI decodes a base64 data URI such as
// "data:application/octet-stream;base64,AAAA".
func DecodeDataURI(uri string) ([]byte, error) {
	head, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasSuffix(head, ";base64") {
		return nil, newErr("unsupported data URI")
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, newErr("invalid data URI: " + err.Error())
	}
	return b, nil
}

// View returns the bytes covered by bufferView idx.
func (m *Model) View(idx int64) []byte {
	bv := &m.Doc.BufferViews[idx]
	return m.Buffers[bv.Buffer][bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
}
