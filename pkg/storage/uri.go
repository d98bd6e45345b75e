package storage

import (
	"net/url"
	"path/filepath"
	"strings"
)

type Scheme string

const (
	FileScheme Scheme = "file"
	S3Scheme   Scheme = "s3"
)

func knownScheme(s Scheme) bool {
	switch s {
	case FileScheme, S3Scheme:
		return true
	}
	return false
}

type URI url.URL

// ParseURI parses path with url.Parse.  If the path carries no known
// scheme it is treated as a file and resolved to an absolute path.
// An empty path returns a pointer to a zero-valued URI.
func ParseURI(path string) (*URI, error) {
	if path == "" {
		return &URI{}, nil
	}
	u, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	if !knownScheme(Scheme(u.Scheme)) {
		// Either the scheme is empty, implying a file, or it's a
		// file path with a colon embedded, so parse it as a file.
		return parseBarePath(path)
	}
	return (*URI)(u), nil
}

func parseBarePath(path string) (*URI, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &URI{
		Scheme: string(FileScheme),
		Path:   filepath.ToSlash(abs),
	}, nil
}

func MustParseURI(path string) *URI {
	u, err := ParseURI(path)
	if err != nil {
		panic(err)
	}
	return u
}

func (u URI) String() string {
	return (*url.URL)(&u).String()
}

func (u *URI) SchemeOf() Scheme {
	return Scheme(u.Scheme)
}

func (u *URI) Filepath() string {
	return filepath.FromSlash(u.Path)
}

func (p *URI) JoinPath(elem ...string) *URI {
	u := *p
	for _, el := range elem {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + el
	}
	return &u
}

func (u *URI) RelPath(target URI) string {
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return strings.TrimPrefix(target.Path, u.Path)
}

func (u *URI) IsZero() bool {
	return *u == URI{}
}

func (u *URI) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *URI) UnmarshalText(b []byte) error {
	uri, err := ParseURI(string(b))
	if err != nil {
		return err
	}
	*u = *uri
	return nil
}
