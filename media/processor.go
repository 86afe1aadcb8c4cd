package media

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const (
	FrameJpegQuality = 95

	DefaultThumbnailWidth   = 320
	DefaultThumbnailHeight  = 180
	DefaultThumbnailQuality = 85
)

// Processor encodes decoded frames and their thumbnails and hands the bytes
// to a Store.
type Processor struct {
	store Store
	log   *zap.Logger
}

func NewProcessor(store Store, log *zap.Logger) *Processor {
	return &Processor{store: store, log: log}
}

// SaveFrame encodes img at full resolution as JPEG.
func (p *Processor) SaveFrame(img image.Image, namespace, filename string) (string, error) {
	if err := checkBounds(img); err != nil {
		return "", err
	}
	encoded := encodeJPEG(img, FrameJpegQuality, p.log)
	defer encoded.Close()

	savedRelPath, err := p.store.Save(AssetTypeFrame, namespace, filename, encoded)
	if err != nil {
		return "", fmt.Errorf("failed to save frame via store: %w", err)
	}
	return savedRelPath, nil
}

// GenerateThumbnail fits img inside the configured box, never upscaling.
func (p *Processor) GenerateThumbnail(img image.Image, namespace, filename string, opts ImageProcessingOptions) (string, error) {
	if err := checkBounds(img); err != nil {
		return "", err
	}
	if opts.MaxWidth <= 0 || opts.MaxHeight <= 0 {
		opts.MaxWidth, opts.MaxHeight = DefaultThumbnailWidth, DefaultThumbnailHeight
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultThumbnailQuality
	}

	thumb := imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)

	encoded := encodeJPEG(thumb, opts.Quality, p.log)
	defer encoded.Close()

	savedRelPath, err := p.store.Save(AssetTypeThumbnail, namespace, filename, encoded)
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail via store: %w", err)
	}
	return savedRelPath, nil
}

func checkBounds(img image.Image) error {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("invalid image dimensions: %dx%d", b.Dx(), b.Dy())
	}
	return nil
}

// encodeJPEG streams the encoded image; encoding errors surface on Read.
// Closing the reader early stops the encoder.
func encodeJPEG(img image.Image, quality int, log *zap.Logger) *io.PipeReader {
	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, img, imaging.JPEG, imaging.JPEGQuality(quality))
		if err != nil {
			log.Debug("processor: jpeg encoding stopped", zap.Error(err))
			writer.CloseWithError(fmt.Errorf("jpeg encoding failed: %w", err))
			return
		}
		writer.Close()
	}()
	return reader
}
