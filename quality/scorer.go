package quality

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Score runs the two-stage assessment on a decoded BGR(A) or grayscale frame.
// The frame is only read. Structural problems are returned as ErrInvalidFrame.
func Score(frame gocv.Mat) (Result, error) {
	if frame.Empty() || frame.Cols() <= 0 || frame.Rows() <= 0 {
		return Result{}, fmt.Errorf("%w: empty frame", ErrInvalidFrame)
	}
	if ch := frame.Channels(); ch != 1 && ch != 3 && ch != 4 {
		return Result{}, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidFrame, ch)
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(frame, &small, image.Pt(QuickCheckWidth, QuickCheckHeight), 0, 0, gocv.InterpolationArea)
	if small.Empty() {
		return Result{}, fmt.Errorf("%w: downsample failed", ErrInvalidFrame)
	}

	smallGray, err := luminance(small)
	if err != nil {
		return Result{}, err
	}
	defer smallGray.Close()

	// brightness is checked first so dark or blown-out frames skip the laplacian
	brightness := smallGray.Mean().Val1
	if reason, ok := checkBrightness(brightness); !ok {
		return reject(reason, brightness), nil
	}

	lapVar, err := laplacianVariance(smallGray)
	if err != nil {
		return Result{}, err
	}
	if reason, ok := QuickCheck(brightness, lapVar); !ok {
		return reject(reason, brightness), nil
	}

	fullGray, err := luminance(frame)
	if err != nil {
		return Result{}, err
	}
	defer fullGray.Close()

	_, stdDev, err := meanStdDev(fullGray)
	if err != nil {
		return Result{}, err
	}

	return Result{Verdict: Accepted, Metrics: Compose(brightness, lapVar, stdDev)}, nil
}

// luminance returns a single-channel copy of src. The caller closes it.
func luminance(src gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()
	switch src.Channels() {
	case 1:
		src.CopyTo(&gray)
	case 3:
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, &gray, gocv.ColorBGRAToGray)
	}
	if gray.Empty() || gray.Channels() != 1 {
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("%w: luminance conversion failed", ErrInvalidFrame)
	}
	return gray, nil
}

func laplacianVariance(gray gocv.Mat) (float64, error) {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)
	if lap.Empty() {
		return 0, fmt.Errorf("%w: laplacian failed", ErrInvalidFrame)
	}
	_, sd, err := meanStdDev(lap)
	if err != nil {
		return 0, err
	}
	return sd * sd, nil
}

func meanStdDev(src gocv.Mat) (float64, float64, error) {
	mean := gocv.NewMat()
	defer mean.Close()
	sd := gocv.NewMat()
	defer sd.Close()

	gocv.MeanStdDev(src, &mean, &sd)
	if mean.Empty() || sd.Empty() {
		return 0, 0, fmt.Errorf("%w: mean/stddev failed", ErrInvalidFrame)
	}
	return mean.GetDoubleAt(0, 0), sd.GetDoubleAt(0, 0), nil
}
