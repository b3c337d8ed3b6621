package vision

import (
	"context"
	"image"
	"image/color"
	"math/rand/v2"

	"gocv.io/x/gocv"
)

// Параметры возмущений (доли канонического размера, градусы).
const (
	maxTranslateFrac = 0.05
	minScale         = 0.5
	maxScale         = 1.2
	maxRotateDeg     = 20.0

	brightContrastProb = 0.5
	blurProb           = 0.2

	maxBrightnessDelta = 0.3 // в долях диапазона [0, 255]
	maxContrastDelta   = 0.3
)

// Augmenter синтезирует варианты нормализованного изображения:
// каждый вариант получает аффинное возмущение целиком (включая альфу),
// фотометрические возмущения применяются только к цветовым каналам,
// чтобы граница прозрачности оставалась точной. Воспроизводимость между
// запусками не гарантируется и не требуется.
type Augmenter struct {
	pipe *Pipeline
}

func NewAugmenter(pipe *Pipeline) *Augmenter {
	return &Augmenter{pipe: pipe}
}

// Augment возвращает n+1 PNG: невозмущённый оригинал плюс n вариантов.
func (a *Augmenter) Augment(ctx context.Context, data []byte, n int) ([][]byte, error) {
	img, err := a.pipe.decode(data)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	subject, err := a.pipe.extract(img)
	if err != nil {
		return nil, err
	}
	defer subject.Close()

	canonical := a.pipe.normalize(subject)
	defer canonical.Close()

	results := make([][]byte, 0, n+1)

	original, err := encodePNG(canonical)
	if err != nil {
		return nil, err
	}
	results = append(results, original)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		perturbed := a.perturb(canonical)
		encoded, err := encodePNG(perturbed)
		perturbed.Close()
		if err != nil {
			return nil, err
		}

		results = append(results, encoded)
	}

	return results, nil
}

// perturb применяет одно случайное сочетание возмущений к BGRA-изображению.
func (a *Augmenter) perturb(src gocv.Mat) gocv.Mat {
	size := image.Pt(src.Cols(), src.Rows())

	angle := rand.Float64()*2*maxRotateDeg - maxRotateDeg
	scale := minScale + rand.Float64()*(maxScale-minScale)
	tx := (rand.Float64()*2 - 1) * maxTranslateFrac * float64(size.X)
	ty := (rand.Float64()*2 - 1) * maxTranslateFrac * float64(size.Y)

	rot := gocv.GetRotationMatrix2D(image.Pt(size.X/2, size.Y/2), angle, scale)
	defer rot.Close()
	rot.SetDoubleAt(0, 2, rot.GetDoubleAt(0, 2)+tx)
	rot.SetDoubleAt(1, 2, rot.GetDoubleAt(1, 2)+ty)

	warped := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &warped, rot, size,
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	defer warped.Close()

	chans := gocv.Split(warped)
	defer closeMats(chans)

	bgr := gocv.NewMat()
	gocv.Merge([]gocv.Mat{chans[0], chans[1], chans[2]}, &bgr)
	defer bgr.Close()

	if rand.Float64() < brightContrastProb {
		jitterBrightnessContrast(&bgr)
	}

	if rand.Float64() < blurProb {
		applyRandomBlur(&bgr)
	}

	colorChans := gocv.Split(bgr)
	defer closeMats(colorChans)

	out := gocv.NewMat()
	gocv.Merge([]gocv.Mat{colorChans[0], colorChans[1], colorChans[2], chans[3]}, &out)

	return out
}

// jitterBrightnessContrast меняет контраст и яркость цветовых каналов на месте.
func jitterBrightnessContrast(img *gocv.Mat) {
	contrast := 1 + (rand.Float64()*2-1)*maxContrastDelta
	brightness := (rand.Float64()*2 - 1) * maxBrightnessDelta * 255

	adjusted := gocv.NewMat()
	img.ConvertToWithParams(&adjusted, gocv.MatTypeCV8UC3, float32(contrast), float32(brightness))
	img.Close()
	*img = adjusted
}

// applyRandomBlur применяет не более одного размытия: motion, median или
// gaussian с весами 0.2 / 0.1 / 0.1.
func applyRandomBlur(img *gocv.Mat) {
	blurred := gocv.NewMat()

	switch r := rand.Float64() * 0.4; {
	case r < 0.2:
		k := 3 + 2*rand.IntN(3)
		kernel := motionKernel(k)
		gocv.Filter2D(*img, &blurred, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
		kernel.Close()
	case r < 0.3:
		gocv.MedianBlur(*img, &blurred, 3)
	default:
		gocv.GaussianBlur(*img, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)
	}

	img.Close()
	*img = blurred
}

// motionKernel строит ядро k×k c единственной заполненной строкой —
// горизонтальный смаз, нормированный на единицу.
func motionKernel(k int) gocv.Mat {
	kernel := gocv.Zeros(k, k, gocv.MatTypeCV32F)
	for x := 0; x < k; x++ {
		kernel.SetFloatAt(k/2, x, 1/float32(k))
	}

	return kernel
}
