// Пакет audio — анализ качества звуковой дорожки медиафайла.
//
// Analyzer декодирует файл внешним ffmpeg в сырой поток сэмплов
// (моно, 44.1 кГц, float32 LE) и на лету строит гистограмму амплитуд
// и два взвешенных спектральных профиля. Checker превращает
// полученные метрики в оценки качества (громкость, клиппинг, шум).
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/confcollect/collector/internal/check/fft"
)

const (
	// blockSize — размер блока анализа в сэмплах (степень двойки для БПФ)
	blockSize = 2048
	// histogramBins — число корзин гистограммы |db|; последняя — переполнение
	histogramBins = 101
	// processExitWait — сколько ждать завершения ffmpeg после конца stdout
	processExitWait = 10 * time.Second
)

// sampleEpsilon — нижняя граница амплитуды перед переводом в децибелы,
// защищает от log10(0).
const sampleEpsilon = math.SmallestNonzeroFloat32

// Analyzer — потоковый анализатор звука поверх внешнего декодера ffmpeg.
type Analyzer struct {
	ffmpegPath string
}

// NewAnalyzer создаёт анализатор. Возвращает ошибку, если бинарник
// ffmpeg по указанному пути не существует.
func NewAnalyzer(ffmpegPath string) (*Analyzer, error) {
	if _, err := os.Stat(ffmpegPath); err != nil {
		return nil, fmt.Errorf("ffmpeg не найден по пути %s: %w", ffmpegPath, err)
	}
	return &Analyzer{ffmpegPath: ffmpegPath}, nil
}

// AnalysisResult — сырые агрегаты одного прохода по звуковой дорожке.
type AnalysisResult struct {
	// Histogram — количество блоков на каждую корзину |db| (0..100)
	Histogram []int64
	// SpectrumHighAmp — спектральный профиль, взвешенный в пользу громких блоков
	SpectrumHighAmp []float64
	// SpectrumLowAmp — профиль, взвешенный в пользу тихих блоков
	SpectrumLowAmp []float64
}

// Analyze декодирует файл и возвращает агрегаты по всем полным блокам.
// Любая ошибка декодера (отсутствие бинарника, ненулевой код выхода,
// таймаут) прерывает анализ целиком: частичный результат не возвращается.
func (a *Analyzer) Analyze(path string) (*AnalysisResult, error) {
	var res *AnalysisResult

	err := a.runDecoder(path, func(stdout io.Reader) error {
		var streamErr error
		res, streamErr = analyzeStream(stdout)
		return streamErr
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// runDecoder запускает ffmpeg с выводом сырых сэмплов на stdout и передаёт
// поток в onStream. После конца потока ждёт завершения процесса не дольше
// processExitWait, затем принудительно убивает его.
func (a *Analyzer) runDecoder(path string, onStream func(io.Reader) error) error {
	args := []string{
		"-hide_banner",
		"-i", path,
		"-vn",
		"-ar", "44100",
		"-ac", "1",
		"-f", "f32le",
		"-",
	}

	cmd := exec.Command(a.ffmpegPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("подключение stdout декодера: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("запуск декодера %s: %w", a.ffmpegPath, err)
	}

	streamErr := onStream(stdout)
	// Дочитываем остаток, чтобы процесс не завис на записи в pipe
	_, _ = io.Copy(io.Discard, stdout)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case waitErr := <-waitCh:
		if streamErr != nil {
			return streamErr
		}
		if waitErr != nil {
			return fmt.Errorf("декодер завершился с ошибкой: %w: %s", waitErr, stderr.String())
		}
		return nil
	case <-time.After(processExitWait):
		_ = cmd.Process.Kill()
		<-waitCh
		if streamErr != nil {
			return streamErr
		}
		return fmt.Errorf("декодер не завершился за %s", processExitWait)
	}
}

// analyzeStream читает поток float32 LE сэмплов блоками по blockSize
// и строит гистограмму амплитуд и два взвешенных спектральных профиля.
// Неполный последний блок отбрасывается.
func analyzeStream(r io.Reader) (*AnalysisResult, error) {
	tr, err := fft.New(blockSize)
	if err != nil {
		return nil, err
	}

	hist := make([]int64, histogramBins)
	sumHigh := make([]float64, blockSize/2)
	sumLow := make([]float64, blockSize/2)
	var weightSumHigh, weightSumLow float64

	raw := make([]byte, blockSize*4)
	complexBuf := make([]complex128, blockSize)

	for {
		_, err := io.ReadFull(r, raw)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("чтение потока сэмплов: %w", err)
		}

		// Пиковая амплитуда блока и заполнение комплексного буфера
		maxVal := 0.0
		for i := 0; i < blockSize; i++ {
			v := float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
			complexBuf[i] = complex(v, 0)
			if av := math.Abs(v); av > maxVal {
				maxVal = av
			}
		}

		db := 20 * math.Log10(math.Max(sampleEpsilon, maxVal))
		absDb := int(math.Abs(db))
		if absDb > histogramBins-1 {
			absDb = histogramBins - 1
		}
		hist[absDb]++

		if err := tr.Compute(complexBuf); err != nil {
			return nil, err
		}

		// Два взвешенных профиля: вес громких блоков спадает медленно,
		// вес тихих блоков растёт к порогу -30 дБ
		weight := 1 / float64(1+absDb)
		weightLow := 1 / float64(91-3*min(30, absDb))

		for i := 0; i < blockSize/2; i++ {
			mag := cmplx.Abs(complexBuf[i]) / (blockSize / 2)
			binDb := math.Max(-100, 20*math.Log10(math.Max(sampleEpsilon, mag)))
			sumHigh[i] += binDb * weight
			sumLow[i] += binDb * weightLow
		}

		weightSumHigh += weight
		weightSumLow += weightLow
	}

	if weightSumHigh > 0 {
		for i := range sumHigh {
			sumHigh[i] /= weightSumHigh
			sumLow[i] /= weightSumLow
		}
	}

	return &AnalysisResult{
		Histogram:       hist,
		SpectrumHighAmp: sumHigh,
		SpectrumLowAmp:  sumLow,
	}, nil
}

// AmplitudeStats — скалярные метрики, выведенные из гистограммы амплитуд.
// Доли считаются от общего числа блоков.
type AmplitudeStats struct {
	// Clipping — доля блоков с пиком около 0 дБ (корзины 0-3)
	Clipping float64
	// BestRange — доля блоков в оптимальном голосовом диапазоне (корзины 8-25)
	BestRange float64
	// UnderRange — доля блоков тише оптимального диапазона
	UnderRange float64
	// AboveNoise — доля блоков громче порога шума (корзины 0-39)
	AboveNoise float64
	// NoiseOnly — доля блоков в шумовом окне (корзины 40-59)
	NoiseOnly float64
	// NumBlocks — общее число проанализированных блоков
	NumBlocks int64
	// AverageDb — средний уровень (дБ), взвешенный по блокам громче шума
	AverageDb float64
	// AverageDbWhenQuieter — средний уровень только шумового окна
	AverageDbWhenQuieter float64
}

// Пороговые корзины гистограммы.
const (
	clippingUpper  = 4
	bestRangeLower = 8
	bestRangeUpper = 26
	noiseDbTh      = 40
	silenceDbTh    = 60
)

// AnalyzeAmplitudeHistogram сводит гистограмму к скалярным метрикам.
// Ориентиры для голоса: максимум -10 дБ, оптимум -18 дБ, минимум -24 дБ.
func AnalyzeAmplitudeHistogram(hist []int64) AmplitudeStats {
	var clippingNum, bestRangeNum, underRangeNum, aboveNoiseNum, noiseNum, numBlocks int64
	for i, v := range hist {
		numBlocks += v
		if i < clippingUpper {
			clippingNum += v
		}
		if i >= bestRangeLower && i < bestRangeUpper {
			bestRangeNum += v
		}
		if i >= bestRangeUpper {
			underRangeNum += v
		}
		if i < noiseDbTh {
			aboveNoiseNum += v
		}
		if i >= noiseDbTh && i < silenceDbTh {
			noiseNum += v
		}
	}

	quot := float64(max(1, numBlocks))
	avgQuot := float64(max(1, aboveNoiseNum))
	noiseAvgQuot := float64(max(1, noiseNum))

	var avgDb, noiseAvgDb float64
	for i := 0; i < noiseDbTh; i++ {
		avgDb += float64(-i) * float64(hist[i]) / avgQuot
	}
	for i := noiseDbTh; i < silenceDbTh; i++ {
		noiseAvgDb += float64(-i) * float64(hist[i]) / noiseAvgQuot
	}

	return AmplitudeStats{
		Clipping:             float64(clippingNum) / quot,
		BestRange:            float64(bestRangeNum) / quot,
		UnderRange:           float64(underRangeNum) / quot,
		AboveNoise:           float64(aboveNoiseNum) / quot,
		NoiseOnly:            float64(noiseNum) / quot,
		NumBlocks:            numBlocks,
		AverageDb:            avgDb,
		AverageDbWhenQuieter: noiseAvgDb,
	}
}

// SpectrumStats — метрики, выведенные из пары спектральных профилей.
type SpectrumStats struct {
	// SignalToNoise — оценка отношения сигнал/шум по нижним 50 бинам
	SignalToNoise float64
	// LowFreqMaxDb — пиковый уровень нижней половины спектра
	LowFreqMaxDb float64
	// HighFreqMaxDb — пиковый уровень верхней половины спектра
	HighFreqMaxDb float64
}

// lowRangeLength — число нижних спектральных бинов для оценки SNR.
const lowRangeLength = 50

// AnalyzeSpectrum сравнивает громкий и тихий профили: в бинах, где
// присутствует голос, громкий профиль заметно выше тихого; их разница
// по нижней части спектра служит оценкой сигнал/шум.
func AnalyzeSpectrum(spectrumHigh, spectrumLow []float64) SpectrumStats {
	var snr float64
	// Первые 4 бина (DC и инфранизкие частоты) исключаются
	for i := 4; i < lowRangeLength; i++ {
		snr += spectrumHigh[i] - spectrumLow[i]
	}
	snr /= lowRangeLength

	maxDbLow, maxDbHigh := -100.0, -100.0
	for _, v := range spectrumHigh[:lowRangeLength] {
		if v > maxDbLow {
			maxDbLow = v
		}
	}
	for _, v := range spectrumHigh[lowRangeLength:] {
		if v > maxDbHigh {
			maxDbHigh = v
		}
	}

	return SpectrumStats{
		SignalToNoise: snr,
		LowFreqMaxDb:  maxDbLow,
		HighFreqMaxDb: maxDbHigh,
	}
}
