package downloader

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spkg/bom"
)

// Serves a previously saved document from disk, regardless of the
// requested URL. Used to replay API responses through the pipeline.
type File struct {
	Path string

	// URLs passed to Get, in order.
	Requests []string
}

func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	f.Requests = append(f.Requests, url)

	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Path, err)
	}
	defer fh.Close()

	var reader io.Reader = fh
	if options.MaxSize > 0 {
		reader = io.LimitReader(fh, int64(options.MaxSize))
	}

	body, err := io.ReadAll(bom.NewReader(reader))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}

	return body, nil
}
