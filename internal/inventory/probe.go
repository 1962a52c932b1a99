package inventory

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

const (
	// maxImageBytes bounds a single image download.
	maxImageBytes = 20 << 20
	// maxImagePixels bounds the decoded size; a small compressed file can
	// declare dimensions that would take gigabytes to decode.
	maxImagePixels = 40_000_000
)

// Dimensions is the pixel size of a probed image.
type Dimensions struct {
	Width  int
	Height int
}

// ImageProber fetches an image and reports its size.
type ImageProber interface {
	Probe(ctx context.Context, url string) (Dimensions, error)
}

// HTTPProber downloads images over HTTP and decodes them with imaging.
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPProber returns a prober with a per-image timeout. A nil client uses
// http.DefaultClient.
func NewHTTPProber(client *http.Client, timeout time.Duration) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{client: client, timeout: timeout}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) (Dimensions, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Dimensions{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Dimensions{}, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Dimensions{}, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return Dimensions{}, fmt.Errorf("download failed: %w", err)
	}
	header, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return Dimensions{}, fmt.Errorf("not a readable image: %w", err)
	}
	if header.Width <= 0 || header.Height <= 0 || header.Width > maxImagePixels/header.Height {
		return Dimensions{}, fmt.Errorf("image declares %dx%d, above the %d pixel limit", header.Width, header.Height, maxImagePixels)
	}
	img, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return Dimensions{}, fmt.Errorf("not a readable image: %w", err)
	}
	bounds := img.Bounds()
	return Dimensions{Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// checkImages probes every distinct image URL across rows and returns one
// row error per image that cannot be read or is below the minimum size.
func checkImages(ctx context.Context, prober ImageProber, rows []Row, minWidth, minHeight, concurrency int) []*RowError {
	type probe struct {
		url   string
		lines []int
		dims  Dimensions
		err   error
	}
	var (
		probes []*probe
		byURL  = make(map[string]*probe)
	)
	for _, row := range rows {
		for _, url := range row.Images {
			if existing, ok := byURL[url]; ok {
				existing.lines = append(existing.lines, row.Line)
				continue
			}
			p := &probe{url: url, lines: []int{row.Line}}
			byURL[url] = p
			probes = append(probes, p)
		}
	}

	if concurrency <= 0 {
		concurrency = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, p := range probes {
		group.Go(func() error {
			p.dims, p.err = prober.Probe(groupCtx, p.url)
			return nil
		})
	}
	_ = group.Wait()

	var out []*RowError
	for _, p := range probes {
		var reason string
		switch {
		case p.err != nil:
			reason = fmt.Sprintf("%s: %v", p.url, p.err)
		case p.dims.Width < minWidth || p.dims.Height < minHeight:
			reason = fmt.Sprintf("%s is %dx%d, must be at least %dx%d", p.url, p.dims.Width, p.dims.Height, minWidth, minHeight)
		default:
			continue
		}
		for _, line := range p.lines {
			out = append(out, &RowError{Line: line, Column: ColumnImage, Reason: reason})
		}
	}
	return out
}
