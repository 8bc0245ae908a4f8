package scraper

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	"github.com/justbri/reelscrape/shared/format"
	"github.com/justbri/reelscrape/shared/logger"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegDataURIPrefix = "data:image/jpeg;base64,"

// maxSourcePixels bounds the decoded size of a poster. Larger images are
// rejected from their header alone.
const maxSourcePixels = 40_000_000

// ErrImageTooLarge is returned for posters above maxSourcePixels.
var ErrImageTooLarge = errors.New("image dimensions too large")

// ImageOptions sets the thumbnail geometry and JPEG quality.
type ImageOptions struct {
	Width   int
	Height  int
	Quality int
	Logger  *slog.Logger
}

// ImageProcessor turns poster URLs into inline JPEG thumbnails.
type ImageProcessor struct {
	fetcher *Fetcher
	opts    ImageOptions
	logger  *slog.Logger
}

func NewImageProcessor(fetcher *Fetcher, opts ImageOptions) *ImageProcessor {
	if opts.Width <= 0 {
		opts.Width = 300
	}
	if opts.Height <= 0 {
		opts.Height = 450
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	return &ImageProcessor{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.OrDefault(opts.Logger).With("component", "images"),
	}
}

// ProcessImage downloads imageURL through the shared limiter and returns a
// JPEG data URI cropped to fill the configured size. Any failure is logged
// and reported as ok == false. label only appears in logs.
func (ip *ImageProcessor) ProcessImage(ctx context.Context, imageURL, label string) (string, bool) {
	data, err := ip.load(ctx, imageURL)
	if err == nil {
		var thumb []byte
		if thumb, err = ip.Transcode(data); err == nil {
			ip.logger.Debug("Processed poster",
				"title", label,
				"original", format.Bytes(int64(len(data))),
				"thumbnail", format.Bytes(int64(len(thumb))))
			return jpegDataURIPrefix + base64.StdEncoding.EncodeToString(thumb), true
		}
	}
	ip.logger.Warn("Failed to process poster", "title", label, "url", format.Preview(imageURL, 120), "error", err)
	return "", false
}

func (ip *ImageProcessor) load(ctx context.Context, imageURL string) ([]byte, error) {
	if strings.HasPrefix(strings.ToLower(imageURL), "data:") {
		return decodeDataURI(imageURL)
	}
	if ip.fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	res, err := ip.fetcher.Download(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Transcode decodes data (JPEG, PNG, GIF, WebP or BMP), crops it to the target
// aspect ratio around the centre, scales it and encodes it as JPEG.
func (ip *ImageProcessor) Transcode(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, ip.opts.Width, ip.opts.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds(), ip.opts.Width, ip.opts.Height), draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: ip.opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return out.Bytes(), nil
}

// coverRect is the largest centred region of b with the aspect ratio w:h.
func coverRect(b image.Rectangle, w, h int) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	if sw == 0 || sh == 0 {
		return b
	}
	if sw*h > sh*w {
		cw := sh * w / h
		x0 := b.Min.X + (sw-cw)/2
		return image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	}
	ch := sw * h / w
	y0 := b.Min.Y + (sh-ch)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
}

func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, errors.New("malformed data uri")
	}
	meta, payload := uri[:comma], uri[comma+1:]
	if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return nil, errors.New("data uri is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return data, nil
}
