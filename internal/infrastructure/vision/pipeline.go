// Package vision реализует обработку изображений крышек: выделение объекта,
// нормализацию к каноническому разрешению, аугментацию и векторизацию.
// Нормализация обязана быть одинаковой на пути построения индекса и на пути
// запроса, поэтому каноническое разрешение задаётся один раз в Pipeline и
// не дублируется вызывающими.
package vision

import (
	"context"
	"image"

	"github.com/capvault/capsearch/pkg/e"
	"github.com/capvault/capsearch/pkg/logger"
	"gocv.io/x/gocv"
)

// Pipeline объединяет Foreground Extractor и Image Normalizer.
type Pipeline struct {
	seg    Segmenter
	size   image.Point // каноническое разрешение
	logger logger.Logger
}

func NewPipeline(seg Segmenter, imageSize int, logger logger.Logger) *Pipeline {
	return &Pipeline{
		seg:    seg,
		size:   image.Pt(imageSize, imageSize),
		logger: logger,
	}
}

// Preprocess — путь запроса: декодировать, выделить объект, обрезать по
// маске и привести к каноническому разрешению. Возвращает PNG с альфа-каналом.
func (p *Pipeline) Preprocess(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := p.decode(data)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	subject, err := p.extract(img)
	if err != nil {
		return nil, err
	}
	defer subject.Close()

	canonical := p.normalize(subject)
	defer canonical.Close()

	return encodePNG(canonical)
}

// decode разбирает сырые байты изображения (BGR, альфа отбрасывается).
func (p *Pipeline) decode(data []byte) (gocv.Mat, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		return gocv.Mat{}, e.ErrDecodeImage
	}

	return img, nil
}

// extract строит BGRA-изображение с маской сегментации в альфа-канале и
// обрезает его по ограничивающему прямоугольнику ненулевой альфы.
// Полностью нулевая маска — не ошибка: изображение возвращается без обрезки.
func (p *Pipeline) extract(img gocv.Mat) (gocv.Mat, error) {
	mask, err := p.seg.Mask(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer mask.Close()

	chans := gocv.Split(img)
	defer closeMats(chans)

	bgra := gocv.NewMat()
	gocv.Merge([]gocv.Mat{chans[0], chans[1], chans[2], mask}, &bgra)

	alpha, err := mask.DataPtrUint8()
	if err != nil {
		bgra.Close()
		return gocv.Mat{}, err
	}

	rect, ok := AlphaBounds(alpha, img.Cols(), img.Rows())
	if !ok {
		p.logger.Debugf("segmentation mask is empty, keeping full frame")
		return bgra, nil
	}

	region := bgra.Region(rect)
	cropped := region.Clone()
	region.Close()
	bgra.Close()

	return cropped, nil
}

// normalize приводит изображение к каноническому разрешению (Lanczos).
func (p *Pipeline) normalize(img gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(img, &dst, p.size, 0, 0, gocv.InterpolationLanczos4)

	return dst
}

func (p *Pipeline) Size() image.Point {
	return p.size
}

func encodePNG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())

	return out, nil
}

func closeMats(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
