package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser"
	"github.com/0x5457/repograph/internal/util"
)

type fileResult struct {
	res       *parser.Result
	unchanged bool
}

// extract parses paths on a bounded worker pool. Results are handed to
// collect on a single goroutine, so collect may write to shared state
// without locking. Files whose hash equals prev[path] are reported as
// unchanged without being parsed.
func (i *Indexer) extract(
	ctx context.Context,
	root string,
	paths []string,
	prev map[string]string,
	collect func(fileResult),
) error {
	total := len(paths)
	i.progress(models.IndexProgress{Stage: models.IndexStageScan, TotalFiles: total})

	results := make(chan fileResult)
	done := make(chan struct{})
	go func() {
		defer close(done)
		parsed := 0
		for r := range results {
			parsed++
			collect(r)
			i.progress(models.IndexProgress{
				Stage:       models.IndexStageParse,
				TotalFiles:  total,
				ParsedFiles: parsed,
				CurrentFile: r.res.File.Path,
			})
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opt.ParseWorkers)
	for _, rel := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r := i.extractFile(root, rel, prev)
			select {
			case results <- r:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	err := g.Wait()
	close(results)
	<-done
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (i *Indexer) extractFile(root, rel string, prev map[string]string) fileResult {
	ext, ok := i.reg.ForPath(rel)
	if !ok {
		return fileResult{res: unreadable(rel, "", "unsupported file type")}
	}
	code, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		i.log.Warn("read failed", "file", rel, "err", err)
		return fileResult{res: unreadable(rel, ext.Language(), err.Error())}
	}
	if h, ok := prev[rel]; ok && h == util.ContentHash(code) {
		return fileResult{res: &parser.Result{File: models.FileRecord{Path: rel}}, unchanged: true}
	}
	res := parser.Extract(ext, rel, code)
	if res.Mode != models.ParsePrecise {
		i.log.Debug("precise parse failed", "file", rel, "mode", res.Mode)
	}
	return fileResult{res: res}
}

func unreadable(rel, lang, msg string) *parser.Result {
	return &parser.Result{
		Mode: models.ParseEmpty,
		File: models.FileRecord{
			Path:      rel,
			Language:  lang,
			ParseMode: models.ParseEmpty,
			Error:     msg,
			Symbols:   []string{},
		},
	}
}
