package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
)

// Body encodes a request payload.
type Body interface {
	// Encode returns the payload and its Content-Type.
	Encode() (io.Reader, string, error)
}

// JSONBody is a structured body. It must never carry file content.
type JSONBody struct {
	Value any
}

// Encode marshals the value.
func (b JSONBody) Encode() (io.Reader, string, error) {
	raw, err := json.Marshal(b.Value)
	if err != nil {
		return nil, "", fmt.Errorf("encode json body: %w", err)
	}
	return bytes.NewReader(raw), "application/json", nil
}

// FormBody is an application/x-www-form-urlencoded body. Only the login call uses it.
type FormBody struct {
	Values url.Values
}

// Encode url-encodes the values.
func (b FormBody) Encode() (io.Reader, string, error) {
	return strings.NewReader(b.Values.Encode()), "application/x-www-form-urlencoded", nil
}

// FilePart is one file inside a multipart body.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

// MultipartBody carries files alongside plain form fields.
type MultipartBody struct {
	Fields map[string]string
	Files  []FilePart
}

// Encode writes the multipart form into memory. Fields are written in sorted order, files last.
func (b MultipartBody) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(b.Fields))
	for k := range b.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, b.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("multipart: write field %s: %w", k, err)
		}
	}

	for _, f := range b.Files {
		if f.Content == nil {
			return nil, "", fmt.Errorf("multipart: file part %s has no content", f.Field)
		}
		filename := f.Filename
		if filename == "" {
			filename = f.Field
		}
		ctype := f.ContentType
		if ctype == "" {
			ctype = mime.TypeByExtension(filepath.Ext(filename))
		}
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.Field), escapeQuotes(filename)))
		h.Set("Content-Type", ctype)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("multipart: create part %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("multipart: write file %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
