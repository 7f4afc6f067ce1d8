package csvio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/JonMunkholm/csvutils/internal/core"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism caps how many files of one batch are decoded at once.
const DefaultParallelism = 4

// Source is one input file, opened lazily by the batch parser.
type Source struct {
	Name         string
	Size         int64
	LastModified time.Time
	Open         func() (io.ReadCloser, error)
}

// FileSource reads from a path on disk. Name is the path as given.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// Parse opens and decodes one source.
func Parse(src Source) core.ParsedFile {
	rc, err := src.Open()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.ParsedFile{
				Name:     src.Name,
				Warnings: []string{fmt.Sprintf("Warning: file not found: %s", src.Name)},
			}
		}
		return parseFailure(src.Name, err)
	}
	defer rc.Close()

	pf := Decode(src.Name, rc)
	pf.Size = src.Size
	pf.LastModified = src.LastModified

	if f, ok := rc.(*os.File); ok && pf.Size == 0 {
		if info, err := f.Stat(); err == nil {
			pf.Size = info.Size()
			pf.LastModified = info.ModTime()
		}
	}
	return pf
}

// ParseBatch decodes every source concurrently and returns the results in
// input order once all of them have finished. The only error is ctx ending
// before the batch completes.
func ParseBatch(ctx context.Context, sources []Source) ([]core.ParsedFile, error) {
	out := make([]core.ParsedFile, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultParallelism)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Parse(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
