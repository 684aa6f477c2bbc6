// Пакет video — проверка видеофайла на соответствие требованиям
// (контейнер, кодеки, размер кадра, частота кадров, длительность).
// Метаданные получает внешний ffprobe, который рассматривается как
// чёрный ящик: путь на входе, структурированный JSON на выходе.
package video

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// ProbeOutput — структурированный вывод ffprobe (формат + потоки).
// Объявлены только используемые поля.
type ProbeOutput struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// ProbeFormat — сведения о контейнере.
type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	// Duration — длительность в секундах, десятичная строка
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

// ProbeStream — сведения об одном потоке контейнера.
type ProbeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	// RFrameRate — частота кадров в виде рациональной дроби, например "30/1"
	RFrameRate         string `json:"r_frame_rate"`
	AvgFrameRate       string `json:"avg_frame_rate"`
	DisplayAspectRatio string `json:"display_aspect_ratio"`
	Duration           string `json:"duration"`
	Channels           int    `json:"channels"`
	SampleRate         string `json:"sample_rate"`
}

// Prober запускает внешний ffprobe и разбирает его вывод.
type Prober struct {
	ffprobePath string
}

// NewProber создаёт Prober. Возвращает ошибку, если бинарник
// ffprobe по указанному пути не существует.
func NewProber(ffprobePath string) (*Prober, error) {
	if _, err := os.Stat(ffprobePath); err != nil {
		return nil, fmt.Errorf("ffprobe не найден по пути %s: %w", ffprobePath, err)
	}
	return &Prober{ffprobePath: ffprobePath}, nil
}

// Probe возвращает метаданные файла. Ошибка означает сбой самого
// инструмента (запуск, ненулевой код выхода, невалидный JSON).
func (p *Prober) Probe(path string) (*ProbeOutput, error) {
	cmd := exec.Command(p.ffprobePath,
		"-v", "quiet",
		"-hide_banner",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe завершился с ошибкой: %w: %s", err, stderr.String())
	}

	var out ProbeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("ffprobe вернул невалидный JSON: %w", err)
	}

	return &out, nil
}
