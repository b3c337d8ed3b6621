package vision

import "image"

// AlphaBounds возвращает ограничивающий прямоугольник ненулевых значений
// альфа-канала (построчная развёртка, stride == width). Если маска целиком
// нулевая, возвращает ok=false — вызывающий оставляет изображение без обрезки.
func AlphaBounds(alpha []byte, width, height int) (image.Rectangle, bool) {
	minX, minY := width, height
	maxX, maxY := -1, -1

	for y := 0; y < height; y++ {
		row := alpha[y*width : (y+1)*width]
		for x, v := range row {
			if v == 0 {
				continue
			}

			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			maxY = y
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}

	return image.Rect(minX, minY, maxX+1, maxY+1), true
}
