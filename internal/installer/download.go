package installer

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"

	"github.com/chrubuntu/chrubuntu/internal/progress"
)

// download stores url in dest, reporting progress while doing so.
func (in *Installer) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := in.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if got, want := resp.StatusCode, http.StatusOK; got != want {
		return fmt.Errorf("downloading %s: unexpected HTTP status: got %v, want %v", url, resp.Status, want)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	progctx, canc := context.WithCancel(ctx)
	defer canc()
	prog := &progress.Reporter{Out: in.Out}
	reported := make(chan struct{})
	go func() {
		defer close(reported)
		prog.Report(progctx)
	}()

	basename := path.Base(url)
	prog.SetStatus("downloading " + basename)
	if resp.ContentLength > 0 {
		prog.SetTotal(uint64(resp.ContentLength))
	}

	start := time.Now()
	_, err = io.Copy(f, io.TeeReader(resp.Body, prog))
	canc()
	<-reported
	if err != nil {
		return fmt.Errorf("downloading %s: %v", url, err)
	}
	duration := time.Since(start)
	transferred := prog.Reset()
	fmt.Fprintf(in.Out, "\rDownloaded %s (%s) at %.2f MiB/s (total: %v)\n",
		basename,
		progress.Bytes(transferred),
		float64(transferred)/duration.Seconds()/1024/1024,
		duration.Round(time.Second))
	return f.Close()
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// ValidateArchive verifies that fn is a complete gzip or xz compressed tar
// archive: every entry header parses and the compressed stream is read to
// its end, which verifies its checksum. Error pages served instead of the
// archive and truncated downloads are rejected.
func ValidateArchive(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := validateArchive(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArchive, fn, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s: archive is empty", ErrInvalidArchive, fn)
	}
	return nil
}

func validateArchive(br *bufio.Reader) (entries int, _ error) {
	magic, _ := br.Peek(len(xzMagic))
	var r io.Reader
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := pgzip.NewReader(br)
		if err != nil {
			return 0, err
		}
		defer zr.Close()
		r = zr
	case bytes.HasPrefix(magic, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return 0, err
		}
		r = xr
	default:
		return 0, fmt.Errorf("not a gzip or xz compressed file (starts with %q)", magic)
	}
	tr := tar.NewReader(r)
	for {
		_, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return entries, fmt.Errorf("entry %d: %v", entries, err)
		}
		if err := drain(tr); err != nil {
			return entries, fmt.Errorf("entry %d: %v", entries, err)
		}
		entries++
	}
	// Consume trailing padding so that the compression checksum is checked.
	if err := drain(r); err != nil {
		return entries, err
	}
	return entries, nil
}

// drain reads r to its end. The io.WriterTo of pgzip.Reader must not be used
// once the stream was partially read, so r is read through plain Read calls.
func drain(r io.Reader) error {
	_, err := io.Copy(io.Discard, struct{ io.Reader }{r})
	return err
}
