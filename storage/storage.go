// Package storage defines read-only sources for reference data such as the
// screening corpus. A Source hides whether the bytes come from local disk,
// an HTTP server or an S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Source opens named objects for reading.
//
// Paths are forward-slash separated and relative to the source root.
// Implementations must be safe for concurrent use.
type Source interface {
	// Open opens the named object. The caller must close the returned
	// ReadCloser. A missing object yields an error wrapping os.ErrNotExist.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// SplitLocation splits a dataset location into a Source and the object path
// inside it:
//
//	s3://bucket/prefix/data.csv -> S3 source for bucket, "prefix/data.csv"
//	https://host/dir/data.csv   -> HTTP source for https://host/dir, "data.csv"
//	/srv/data/data.csv          -> Local source for /srv/data, "data.csv"
//
// newS3 builds the S3 source for a bucket; it is only called for s3 URLs.
func SplitLocation(location string, newS3 func(bucket string) (Source, error)) (Source, string, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain (possibly Windows drive-letter) path
		dir, file := splitDir(location)
		src, err := NewLocal(dir)
		if err != nil {
			return nil, "", err
		}
		return src, file, nil
	}

	switch u.Scheme {
	case "file":
		dir, file := splitDir(u.Path)
		src, err := NewLocal(dir)
		if err != nil {
			return nil, "", err
		}
		return src, file, nil

	case "http", "https":
		dir, file := splitDir(u.Path)
		base := *u
		base.Path = dir
		base.RawQuery = ""
		return NewHTTP(base.String(), nil), file, nil

	case "s3":
		if newS3 == nil {
			return nil, "", fmt.Errorf("storage: no S3 client configured for %s", location)
		}
		src, err := newS3(u.Host)
		if err != nil {
			return nil, "", err
		}
		return src, strings.TrimPrefix(u.Path, "/"), nil

	default:
		return nil, "", fmt.Errorf("storage: unsupported scheme %q", u.Scheme)
	}
}

// splitDir splits at the last slash; a bare name resolves against "."
func splitDir(p string) (string, string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ".", p
	}
	if i == 0 {
		return "/", p[1:]
	}
	return p[:i], p[i+1:]
}
