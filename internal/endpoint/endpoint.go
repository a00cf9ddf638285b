// Package endpoint declares every backend operation (method, path template,
// parameter placement and body encoding) and groups them by caller role.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"

	"campusattend/internal/apiclient"
)

// Encoding is how an operation's body travels.
type Encoding int

const (
	// EncodingNone sends no body. Filters go in the query.
	EncodingNone Encoding = iota
	EncodingJSON
	EncodingForm
	// EncodingMultipart is required for every operation that carries file content.
	EncodingMultipart
)

func (e Encoding) String() string {
	switch e {
	case EncodingNone:
		return "none"
	case EncodingJSON:
		return "json"
	case EncodingForm:
		return "form"
	case EncodingMultipart:
		return "multipart"
	}
	return "unknown"
}

var (
	// ErrInvalidArgs is wrapped by every Build failure.
	ErrInvalidArgs = errors.New("invalid request arguments")
	// ErrWrongProfile is returned when a kiosk operation is sent on a credentialed client.
	ErrWrongProfile = errors.New("operation not allowed on this client profile")
)

// Endpoint describes one backend operation relative to the API root.
type Endpoint struct {
	Name     string
	Method   string
	Path     string // may contain {param} placeholders
	Encoding Encoding
	// FileField is the multipart field the file travels in. Set iff Encoding is multipart.
	FileField string
	// Query lists the only query keys the operation accepts.
	Query []string
	// Auth is false for operations that are legitimately called without a session.
	Auth bool
	// Kiosk operations may only be sent on a client that never carries a credential.
	Kiosk bool
}

// Args carries the caller-supplied parts of one call.
type Args struct {
	Path   map[string]string
	Query  url.Values
	Body   any               // JSON
	Form   url.Values        // form-encoded
	Fields map[string]string // multipart text fields
	Files  []apiclient.FilePart
}

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// Build validates args against the declaration and produces the request. It does no I/O.
func (e Endpoint) Build(a Args) (*apiclient.Request, error) {
	path, err := e.expand(a.Path)
	if err != nil {
		return nil, err
	}

	var query url.Values
	for key, values := range a.Query {
		if !slices.Contains(e.Query, key) {
			return nil, e.invalid("query parameter %q is not accepted", key)
		}
		for _, v := range values {
			if v == "" {
				continue
			}
			if query == nil {
				query = url.Values{}
			}
			query.Add(key, v)
		}
	}

	req := &apiclient.Request{Operation: e.Name, Method: e.Method, Path: path, Query: query}

	if e.Encoding != EncodingMultipart && (len(a.Files) > 0 || len(a.Fields) > 0) {
		return nil, e.invalid("file parts require a multipart operation, this one is %s", e.Encoding)
	}
	if e.Encoding != EncodingJSON && a.Body != nil {
		return nil, e.invalid("structured body on a %s operation", e.Encoding)
	}
	if e.Encoding != EncodingForm && len(a.Form) > 0 {
		return nil, e.invalid("form values on a %s operation", e.Encoding)
	}

	switch e.Encoding {
	case EncodingJSON:
		switch a.Body.(type) {
		case []byte, io.Reader:
			return nil, e.invalid("binary content must be sent as multipart")
		case nil:
		default:
			req.Body = apiclient.JSONBody{Value: a.Body}
		}
	case EncodingForm:
		req.Body = apiclient.FormBody{Values: a.Form}
	case EncodingMultipart:
		if len(a.Files) != 1 {
			return nil, e.invalid("exactly one file is required, got %d", len(a.Files))
		}
		f := a.Files[0]
		if f.Field != e.FileField {
			return nil, e.invalid("file must be sent in field %q, not %q", e.FileField, f.Field)
		}
		if f.Content == nil {
			return nil, e.invalid("file %q has no content", f.Field)
		}
		req.Body = apiclient.MultipartBody{Fields: a.Fields, Files: a.Files}
	}
	return req, nil
}

func (e Endpoint) expand(params map[string]string) (string, error) {
	used := 0
	var missing string
	path := placeholder.ReplaceAllStringFunc(e.Path, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok || v == "" {
			if missing == "" {
				missing = name
			}
			return m
		}
		used++
		return url.PathEscape(v)
	})
	if missing != "" {
		return "", e.invalid("path parameter %q is required", missing)
	}
	if used != len(params) {
		return "", e.invalid("unexpected path parameters")
	}
	return path, nil
}

func (e Endpoint) invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", e.Name, fmt.Sprintf(format, args...), ErrInvalidArgs)
}

// FileFieldName is the multipart field every file upload uses.
const FileFieldName = "file"

func get(name, path string, query ...string) Endpoint {
	return Endpoint{Name: name, Method: http.MethodGet, Path: path, Encoding: EncodingNone, Query: query, Auth: true}
}

func send(name, method, path string) Endpoint {
	return Endpoint{Name: name, Method: method, Path: path, Encoding: EncodingJSON, Auth: true}
}

func upload(name, path string, query ...string) Endpoint {
	return Endpoint{Name: name, Method: http.MethodPost, Path: path, Encoding: EncodingMultipart, FileField: FileFieldName, Query: query, Auth: true}
}

func public(e Endpoint) Endpoint {
	e.Auth = false
	return e
}

func kiosk(e Endpoint) Endpoint {
	e.Auth = false
	e.Kiosk = true
	return e
}

// Catalog lists every declared operation.
func Catalog() []Endpoint {
	var all []Endpoint
	for _, group := range [][]Endpoint{authEndpoints, studentEndpoints, lecturerEndpoints, attendanceEndpoints, kioskEndpoints, adminEndpoints} {
		all = append(all, group...)
	}
	return all
}

func call(ctx context.Context, c *apiclient.Client, e Endpoint, a Args, out any) error {
	if e.Kiosk && c.Profile().RequiresAuth {
		return fmt.Errorf("%s: kiosk operation on the %s client: %w", e.Name, c.Profile().Name, ErrWrongProfile)
	}
	req, err := e.Build(a)
	if err != nil {
		return err
	}
	return c.Do(ctx, req, out)
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}
