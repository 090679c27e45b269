package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
)

// Payload is a request body that carries its own content type.
type Payload interface {
	Encode() (data []byte, contentType string, err error)
}

// Raw is a pre-encoded body with an explicit content type.
type Raw struct {
	Data []byte
	Type string
}

func (r Raw) Encode() ([]byte, string, error) {
	return r.Data, r.Type, nil
}

type formFile struct {
	field    string
	filename string
	content  []byte
}

type formField struct {
	name  string
	value string
}

// Multipart builds a multipart/form-data body.
type Multipart struct {
	fields []formField
	files  []formFile
}

func NewMultipart() *Multipart {
	return &Multipart{}
}

// AddField appends a plain form value.
func (m *Multipart) AddField(name, value string) *Multipart {
	m.fields = append(m.fields, formField{name: name, value: value})
	return m
}

// AddFile appends a file part.
func (m *Multipart) AddFile(field, filename string, content []byte) *Multipart {
	m.files = append(m.files, formFile{field: field, filename: filename, content: content})
	return m
}

// Encode writes the form. The content type carries the generated boundary. A nil
// *Multipart encodes as an empty form.
func (m *Multipart) Encode() ([]byte, string, error) {
	if m == nil {
		m = &Multipart{}
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range m.fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write form field %q: %w", f.name, err)
		}
	}
	for _, f := range m.files {
		part, err := w.CreateFormFile(f.field, f.filename)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %q: %w", f.field, err)
		}
		if _, err := part.Write(f.content); err != nil {
			return nil, "", fmt.Errorf("write form file %q: %w", f.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

type encodedBody struct {
	data        []byte
	contentType string
	// defaultJSON marks bodies that get a JSON content type unless the caller set one.
	defaultJSON bool
}

// encodeBody buffers body so the request can be replayed.
func encodeBody(body any) (encodedBody, error) {
	switch b := body.(type) {
	case nil:
		return encodedBody{}, nil
	case Payload:
		data, contentType, err := b.Encode()
		if err != nil {
			return encodedBody{}, err
		}
		return encodedBody{data: data, contentType: contentType}, nil
	case json.RawMessage:
		return encodedBody{data: b, defaultJSON: true}, nil
	case []byte:
		return encodedBody{data: b, defaultJSON: true}, nil
	case string:
		return encodedBody{data: []byte(b), defaultJSON: true}, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return encodedBody{}, fmt.Errorf("read request body: %w", err)
		}
		return encodedBody{data: data, defaultJSON: true}, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return encodedBody{}, fmt.Errorf("encode request body: %w", err)
		}
		return encodedBody{data: data, defaultJSON: true}, nil
	}
}

func (b encodedBody) reader() io.Reader {
	if b.data == nil {
		return nil
	}
	return bytes.NewReader(b.data)
}
