package vision

import (
	"fmt"
	"image"
	"sync"

	"github.com/capvault/capsearch/pkg/e"
	"github.com/jimlawless/whereami"
	"gocv.io/x/gocv"
)

// Segmenter отделяет объект от фона: возвращает одноканальную маску
// уверенности (CV8UC1) того же размера, что и входное изображение.
type Segmenter interface {
	Mask(img gocv.Mat) (gocv.Mat, error)
	Close() error
}

// U2NetSegmenter — сегментация через ONNX-модель U2Net, загруженную в DNN
// OpenCV. Сеть не потокобезопасна, прямые проходы сериализуются мьютексом.
type U2NetSegmenter struct {
	mu        sync.Mutex
	net       gocv.Net
	inputSize image.Point
}

func NewU2NetSegmenter(modelPath string, inputSize int) (*U2NetSegmenter, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to read segmentation model from %s", modelPath))
	}

	return &U2NetSegmenter{
		net:       net,
		inputSize: image.Pt(inputSize, inputSize),
	}, nil
}

// Mask прогоняет изображение через сеть и растягивает карту уверенности
// до исходного размера. Значения маски нормируются в [0, 255] min-max'ом.
func (s *U2NetSegmenter) Mask(img gocv.Mat) (gocv.Mat, error) {
	blob := gocv.BlobFromImage(img, 1.0/255.0, s.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	out := s.net.Forward("")
	s.mu.Unlock()
	defer out.Close()

	raw, err := out.DataPtrFloat32()
	if err != nil {
		return gocv.Mat{}, e.Wrap(whereami.WhereAmI(), err)
	}

	side := s.inputSize.X
	total := side * side
	if len(raw) < total {
		return gocv.Mat{}, e.Wrap(whereami.WhereAmI(), fmt.Errorf("unexpected segmenter output size %d", len(raw)))
	}
	raw = raw[:total]

	lo, hi := raw[0], raw[0]
	for _, v := range raw {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	buf := make([]byte, total)
	if hi > lo {
		scale := 255 / (hi - lo)
		for i, v := range raw {
			buf[i] = byte((v - lo) * scale)
		}
	}

	small, err := gocv.NewMatFromBytes(side, side, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return gocv.Mat{}, e.Wrap(whereami.WhereAmI(), err)
	}
	defer small.Close()

	mask := gocv.NewMat()
	gocv.Resize(small, &mask, image.Pt(img.Cols(), img.Rows()), 0, 0, gocv.InterpolationLinear)

	return mask, nil
}

func (s *U2NetSegmenter) Close() error {
	return s.net.Close()
}
