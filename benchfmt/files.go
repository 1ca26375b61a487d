// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchfmt

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// A Format is the encoding of one input file.
type Format int

const (
	// JSON is a harness results document (see JSONReader).
	JSON Format = iota
	// CSV is a file of pre-aggregated lines (see CSVReader).
	CSV
)

func (f Format) String() string {
	if f == CSV {
		return "csv"
	}
	return "json"
}

// FormatOf returns the Format implied by the extension of p.
func FormatOf(p string) (Format, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".json":
		return JSON, nil
	case ".csv":
		return CSV, nil
	}
	return 0, errors.Errorf("%s: cannot infer format from file extension (want .json or .csv)", p)
}

// An Input is one opened input file.
type Input struct {
	// Path is the path or URL the input was opened from.
	Path string

	// Label names the group this input belongs to. Inputs with
	// the same label are analyzed together.
	Label string

	// Format is the encoding of the input.
	Format Format

	// R reads the content of the input. It is only valid for the
	// duration of the callback passed to Files.Visit.
	R io.Reader
}

// A Files opens a sequence of input files.
//
// Paths may be local file names, "-" for standard input (if
// AllowStdin is set), or gs://bucket/object URLs, which are read
// from Google Cloud Storage.
//
// By default an input's label is its base file name without the
// extension. If AllowLabels is true, a path may be given as
// label=path to choose the label explicitly; several paths may share
// a label.
type Files struct {
	// Paths is the list of inputs to read.
	Paths []string

	// AllowStdin indicates that the path "-" is standard input
	// and that an empty Paths reads standard input alone.
	AllowStdin bool

	// StdinFormat is the format assumed for standard input,
	// which has no extension to infer it from.
	StdinFormat Format

	// AllowLabels allows label=path entries in Paths.
	AllowLabels bool

	// ClientOptions configure the Cloud Storage client used for
	// gs:// paths, for example option.WithCredentialsFile.
	ClientOptions []option.ClientOption

	gcs *storage.Client
}

type input struct {
	path    string
	label   string
	isStdin bool
}

func (f *Files) inputs() []input {
	var ins []input
	if f.AllowStdin && len(f.Paths) == 0 {
		ins = append(ins, input{"-", "stdin", true})
	}
	for _, p := range f.Paths {
		label := ""
		if i := strings.Index(p, "="); f.AllowLabels && i >= 0 {
			label, p = p[:i], p[i+1:]
		}
		isStdin := f.AllowStdin && p == "-"
		if label == "" {
			if isStdin {
				label = "stdin"
			} else {
				label = DefaultLabel(p)
			}
		}
		ins = append(ins, input{p, label, isStdin})
	}
	return ins
}

// DefaultLabel returns the label of an unlabeled path: its base name
// without the extension.
func DefaultLabel(p string) string {
	base := path.Base(filepath.ToSlash(p))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Visit opens each input in order and calls fn with it. The input is
// closed when fn returns. Visit stops at the first error from opening
// an input or from fn.
func (f *Files) Visit(ctx context.Context, fn func(in *Input) error) error {
	defer func() {
		if f.gcs != nil {
			f.gcs.Close()
			f.gcs = nil
		}
	}()
	for _, inp := range f.inputs() {
		in := &Input{Path: inp.path, Label: inp.label}
		var rc io.ReadCloser
		if inp.isStdin {
			in.Format = f.StdinFormat
			rc = io.NopCloser(os.Stdin)
		} else {
			format, err := FormatOf(inp.path)
			if err != nil {
				return err
			}
			in.Format = format
			if rc, err = f.open(ctx, inp.path); err != nil {
				return err
			}
		}
		in.R = rc
		err := fn(in)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *Files) open(ctx context.Context, p string) (io.ReadCloser, error) {
	bucket, object, ok := SplitGCSPath(p)
	if !ok {
		return os.Open(p)
	}
	if f.gcs == nil {
		client, err := storage.NewClient(ctx, f.ClientOptions...)
		if err != nil {
			return nil, errors.Wrap(err, "creating Cloud Storage client")
		}
		f.gcs = client
	}
	r, err := f.gcs.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", p)
	}
	return r, nil
}

// SplitGCSPath splits a gs://bucket/object URL. It reports false if p
// is not such a URL.
func SplitGCSPath(p string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(p, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, found = strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}
