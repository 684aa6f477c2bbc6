// Пакет image — лёгкая проверка загруженного изображения-превью.
// Формат ограничен PNG, поэтому вместо полноценного декодирования
// разбирается только заголовок файла: сигнатура и размеры из IHDR.
package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// pngSignature — первые 8 байт любого корректного PNG-файла.
var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

const (
	// headerLen — сигнатура, заголовок чанка IHDR и его первые поля.
	// Размеры изображения целиком лежат в этих байтах.
	headerLen = 33
	// maxFileSize — потолок размера файла превью
	maxFileSize = 20 * 1024 * 1024
)

// Size — размер изображения в пикселях.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CheckPNG проверяет, что файл является PNG-изображением разумного
// размера. maxSize == nil отключает проверку габаритов. При отказе
// возвращается человекочитаемая причина.
func CheckPNG(path string, maxSize *Size) (ok bool, reason string, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, "", fmt.Errorf("чтение атрибутов файла: %w", err)
	}
	if fi.Size() < headerLen || fi.Size() > maxFileSize {
		return false, "the file is too small or too big", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, "", fmt.Errorf("открытие файла: %w", err)
	}
	defer f.Close()

	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(f, buf); err != nil {
		return false, "the file could not be parsed", nil
	}

	if !bytes.Equal(buf[:len(pngSignature)], pngSignature) {
		return false, "the file is not a valid PNG image file", nil
	}

	width := int(int32(binary.BigEndian.Uint32(buf[16:20])))
	height := int(int32(binary.BigEndian.Uint32(buf[20:24])))
	if width <= 1 || height <= 1 {
		return false, "the width and/or height of the image is too small", nil
	}

	if maxSize != nil && (width > maxSize.Width || height > maxSize.Height) {
		return false, fmt.Sprintf("the dimensions of the image (%d x %d) are not as expected", width, height), nil
	}

	return true, "", nil
}
