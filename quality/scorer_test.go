package quality

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func solidFrame(v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), 360, 640, gocv.MatTypeCV8UC3)
}

func checkerboard(t *testing.T, w, h, cell int) gocv.Mat {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(40)
			if (x/cell+y/cell)%2 == 0 {
				v = 220
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	mat, err := gocv.ImageToMatRGB(img)
	require.NoError(t, err)
	return mat
}

func TestScoreRejectsDarkFrame(t *testing.T) {
	frame := solidFrame(10)
	defer frame.Close()

	res, err := Score(frame)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Verdict)
	assert.Equal(t, ReasonTooDark, res.Reason)
	assert.InDelta(t, 10, res.Metrics.Brightness, 0.5)
	assert.Zero(t, res.Metrics.QualityScore)
	assert.Zero(t, res.Metrics.Sharpness)
}

func TestScoreRejectsBrightFrame(t *testing.T) {
	frame := solidFrame(250)
	defer frame.Close()

	res, err := Score(frame)
	require.NoError(t, err)
	assert.Equal(t, ReasonTooBright, res.Reason)
}

func TestScoreRejectsFlatFrameAsBlurry(t *testing.T) {
	frame := solidFrame(128)
	defer frame.Close()

	res, err := Score(frame)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Verdict)
	assert.Equal(t, ReasonBlurry, res.Reason)
	assert.InDelta(t, 128, res.Metrics.Brightness, 0.5)
}

func TestScoreAcceptsDetailedFrame(t *testing.T) {
	frame := checkerboard(t, 640, 360, 8)
	defer frame.Close()

	res, err := Score(frame)
	require.NoError(t, err)
	require.True(t, res.Accepted())
	assert.Equal(t, 100.0, res.Metrics.Sharpness)
	assert.Greater(t, res.Metrics.Contrast, 30.0)
	assert.Greater(t, res.Metrics.QualityScore, 80.0)
	assert.LessOrEqual(t, res.Metrics.QualityScore, 100.0)
}

func TestScoreAcceptsGrayscaleInput(t *testing.T) {
	frame := checkerboard(t, 640, 360, 8)
	defer frame.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	res, err := Score(gray)
	require.NoError(t, err)
	assert.True(t, res.Accepted())
}

func TestScoreStructuralErrors(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := Score(empty)
	assert.ErrorIs(t, err, ErrInvalidFrame)

	twoChannel := gocv.NewMatWithSize(90, 160, gocv.MatTypeCV8UC2)
	defer twoChannel.Close()
	_, err = Score(twoChannel)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}
