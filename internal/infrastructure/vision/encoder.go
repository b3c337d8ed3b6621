package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/capvault/capsearch/internal/cfg"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/jimlawless/whereami"
	"gocv.io/x/gocv"
)

// ClipEncoder прогоняет изображение через визуальную часть CLIP (ONNX, DNN
// OpenCV) и возвращает вектор фиксированной длины. Декодирование внутри
// отбрасывает альфа-канал. Прямой проход сети сериализуется мьютексом —
// вызывать можно из любого числа горутин.
type ClipEncoder struct {
	mu        sync.Mutex
	net       gocv.Net
	inputSize image.Point
	dim       int
}

func NewClipEncoder(cfg *cfg.VisionCfg) (*ClipEncoder, error) {
	net := gocv.ReadNetFromONNX(cfg.EncoderModelPath)
	if net.Empty() {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to read encoder model from %s", cfg.EncoderModelPath))
	}

	return &ClipEncoder{
		net:       net,
		inputSize: image.Pt(cfg.ImageSize, cfg.ImageSize),
		dim:       cfg.VectorSize,
	}, nil
}

type encodeResult struct {
	vec []float32
	err error
}

// Encode векторизует байты изображения. Прямой проход нельзя прервать,
// поэтому при истечении контекста результат отбрасывается, а вызывающему
// возвращается ошибка таймаута.
func (c *ClipEncoder) Encode(ctx context.Context, data []byte) ([]float32, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		return nil, e.ErrDecodeImage
	}

	done := make(chan encodeResult, 1)
	go func() {
		done <- c.forward(img)
	}()

	select {
	case res := <-done:
		return res.vec, res.err
	case <-ctx.Done():
		return nil, e.Wrap("encoder", ctx.Err())
	}
}

func (c *ClipEncoder) forward(img gocv.Mat) encodeResult {
	defer img.Close()

	blob := gocv.BlobFromImage(img, 1.0/255.0, c.inputSize,
		gocv.NewScalar(0.481, 0.457, 0.408, 0), true, false)
	defer blob.Close()

	c.mu.Lock()
	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	c.mu.Unlock()
	defer out.Close()

	raw, err := out.DataPtrFloat32()
	if err != nil {
		return encodeResult{err: e.Wrap(whereami.WhereAmI(), err)}
	}

	if len(raw) < c.dim {
		return encodeResult{err: e.Wrap(
			fmt.Sprintf("encoder produced %d values, expected %d", len(raw), c.dim),
			e.ErrVectorSize,
		)}
	}

	vec := make([]float32, c.dim)
	copy(vec, raw[:c.dim])

	return encodeResult{vec: vec}
}

func (c *ClipEncoder) Dim() int {
	return c.dim
}

func (c *ClipEncoder) Close() error {
	return c.net.Close()
}
