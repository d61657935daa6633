package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AnyUserName/derivimg/internal/eligibility"
	"github.com/AnyUserName/derivimg/internal/encoder"
	"github.com/AnyUserName/derivimg/internal/metrics"
	"github.com/AnyUserName/derivimg/internal/source"
)

// materializer executes one decision.
type materializer struct {
	accessor  source.Accessor
	processor encoder.Processor
	metrics   *metrics.Metrics
	src       *source.Descriptor
	job       job
	decision  eligibility.Decision
	opts      Options
}

func (m materializer) run(ctx context.Context) (Record, error) {
	start := time.Now()

	var (
		rec Record
		err error
	)
	if m.decision.Action == eligibility.Copy {
		rec, err = m.copy()
	} else {
		rec, err = m.process(ctx)
	}
	if err != nil {
		return Record{}, err
	}

	m.metrics.ObserveMaterialize(string(rec.Action), time.Since(start), rec.Size)
	return rec, nil
}

func (m materializer) base() Record {
	return Record{
		Format:     m.job.req.Format,
		Filename:   m.job.filename,
		OutputPath: m.job.req.DestPath,
		URL:        m.job.url,
		Action:     m.decision.Action,
		Reason:     m.decision.Reason,
	}
}

// copy duplicates the source verbatim. Dry runs echo the source bytes
// without touching disk.
func (m materializer) copy() (Record, error) {
	rec := m.base()
	rec.Width = m.src.Width
	rec.Height = m.src.Height
	rec.Size = m.src.Size

	if m.opts.wantBuffer() {
		rec.Buffer = bytes.Clone(m.src.Bytes())
	}
	if m.opts.DryRun {
		return rec, nil
	}
	if err := m.accessor.CopyFile(m.src.Path, rec.OutputPath); err != nil {
		return Record{}, fmt.Errorf("copy original: %w", err)
	}
	return rec, nil
}

func (m materializer) process(ctx context.Context) (Record, error) {
	out, err := m.processor.Process(ctx, m.src.Bytes(), encoder.Request{
		Width:     m.job.req.Width.Width,
		Format:    m.job.req.Format,
		Options:   m.opts.Encoding,
		Transform: m.opts.Transform,
	})
	if err != nil {
		return Record{}, err
	}

	rec := m.base()
	rec.Width = out.Width
	rec.Height = out.Height
	rec.Size = int64(len(out.Data))
	if m.opts.wantBuffer() {
		rec.Buffer = out.Data
	}
	if m.opts.DryRun {
		return rec, nil
	}
	if err := writeFile(rec.OutputPath, out.Data); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// onDisk reports whether a cached record's file still exists with the
// recorded size.
func (m materializer) onDisk(rec Record) bool {
	info, err := os.Stat(rec.OutputPath)
	return err == nil && info.Size() == rec.Size
}

// writeFile writes data through a temp file renamed into place.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
