package video

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FrameSize — размер кадра в пикселях.
type FrameSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (f FrameSize) String() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Requirements — требования к видеофайлу. Пустой список означает
// «любое значение допустимо».
type Requirements struct {
	MinDuration time.Duration
	MaxDuration time.Duration
	// MaxRecommendedDuration — мягкий потолок: превышение даёт
	// предупреждение, а не ошибку. nil — не проверяется.
	MaxRecommendedDuration *time.Duration
	PackageFormats         []string
	VideoCodecs            []string
	AudioCodecs            []string
	FrameRates             []string
	FrameSizes             []FrameSize
	// MaxNumAudioStreams — потолок количества звуковых потоков
	MaxNumAudioStreams int
	AspectRatio        string
	// CheckVoiceRecording — запрошена ли проверка голосовой записи.
	// Фактически звук проверяется для любого видео независимо от флага.
	CheckVoiceRecording bool
}

// DefaultRequirements — требования к докладу конференции: FullHD H.264
// в mp4, 30 кадров/с, одна звуковая дорожка AAC.
func DefaultRequirements() Requirements {
	return Requirements{
		MinDuration:         5 * time.Second,
		MaxDuration:         5 * time.Hour,
		AspectRatio:         "16:9",
		FrameRates:          []string{"30/1"},
		FrameSizes:          []FrameSize{{Width: 1920, Height: 1080}},
		MaxNumAudioStreams:  1,
		VideoCodecs:         []string{"h264"},
		AudioCodecs:         []string{"aac"},
		PackageFormats:      []string{"mp4"},
		CheckVoiceRecording: true,
	}
}

// DurationVerdict — результат проверки длительности.
type DurationVerdict int

const (
	DurationOk DurationVerdict = iota
	DurationTooLong
	DurationTooShort
	DurationLongerThanRecommended
)

// AspectRatioVerdict — результат проверки соотношения сторон.
type AspectRatioVerdict int

const (
	AspectRatioOk AspectRatioVerdict = iota
	// AspectRatioNotDefined — probe не сообщил соотношение сторон
	AspectRatioNotDefined
	AspectRatioDifferent
)

// CheckResult — результат проверки видеофайла. Живёт только в рамках
// одного прогона проверки; наружу уходит лишь текстовая проекция.
type CheckResult struct {
	Duration                 DurationVerdict
	IsPackageFormatOk        bool
	IsVideoCodecOk           bool
	IsAudioCodecOk           bool
	IsFrameSizeOk            bool
	IsFrameRateOk            bool
	AspectRatio              AspectRatioVerdict
	HasExactlyOneVideoStream bool
	HasAudioStream           bool
	HasTooManyAudioStreams   bool

	// Сырые данные probe для подстановки в сообщения
	RawProbe       *ProbeOutput
	RawVideoStream *ProbeStream
	RawAudioStream *ProbeStream
}

// MetadataSource — источник метаданных медиафайла.
// Реализуется Prober; в тестах подменяется заглушкой.
type MetadataSource interface {
	Probe(path string) (*ProbeOutput, error)
}

// Checker — проверка видеофайла на соответствие требованиям.
type Checker struct {
	probe MetadataSource
}

// NewChecker создаёт Checker поверх источника метаданных.
func NewChecker(probe MetadataSource) *Checker {
	return &Checker{probe: probe}
}

// Check получает метаданные файла и сверяет их с требованиями.
// Ошибка возвращается только при сбое probe; содержательные
// несоответствия — данные в CheckResult.
func (c *Checker) Check(path string, req Requirements) (*CheckResult, error) {
	out, err := c.probe.Probe(path)
	if err != nil {
		return nil, err
	}
	return Evaluate(out, req), nil
}

// Evaluate сверяет вывод probe с требованиями. Все правила проверяются
// независимо и накапливаются; единственный ранний выход — полное
// отсутствие видеопотока.
func Evaluate(out *ProbeOutput, req Requirements) *CheckResult {
	res := &CheckResult{RawProbe: out}

	durationSec := -1.0
	if v, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		durationSec = v
	}

	switch {
	case durationSec < req.MinDuration.Seconds():
		res.Duration = DurationTooShort
	case durationSec > req.MaxDuration.Seconds():
		res.Duration = DurationTooLong
	case req.MaxRecommendedDuration != nil && durationSec > req.MaxRecommendedDuration.Seconds():
		res.Duration = DurationLongerThanRecommended
	default:
		res.Duration = DurationOk
	}

	// Имя формата контейнера — список токенов через запятую,
	// достаточно совпадения любого токена с любым требуемым форматом
	res.IsPackageFormatOk = matchAnyToken(out.Format.FormatName, req.PackageFormats)

	var videoStreams, audioStreams []*ProbeStream
	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			videoStreams = append(videoStreams, s)
		case "audio":
			audioStreams = append(audioStreams, s)
		}
	}

	if len(videoStreams) == 0 {
		return res
	}

	res.HasExactlyOneVideoStream = len(videoStreams) == 1
	vs := videoStreams[0]
	res.RawVideoStream = vs

	res.IsVideoCodecOk = matchesAnyFold(vs.CodecName, req.VideoCodecs)
	res.IsFrameRateOk = len(req.FrameRates) == 0 || containsExact(req.FrameRates, vs.RFrameRate)

	res.AspectRatio = AspectRatioOk
	if req.AspectRatio != "" {
		ratio := strings.TrimSpace(vs.DisplayAspectRatio)
		switch {
		case ratio == "" || strings.EqualFold(ratio, "n/a"):
			res.AspectRatio = AspectRatioNotDefined
		case vs.DisplayAspectRatio != req.AspectRatio:
			res.AspectRatio = AspectRatioDifferent
		}
	}

	res.IsFrameSizeOk = true
	if len(req.FrameSizes) > 0 {
		res.IsFrameSizeOk = false
		for _, size := range req.FrameSizes {
			if vs.Width == size.Width && vs.Height == size.Height {
				res.IsFrameSizeOk = true
				break
			}
		}
	}

	res.HasTooManyAudioStreams = len(audioStreams) > req.MaxNumAudioStreams
	if len(audioStreams) > 0 {
		res.HasAudioStream = true
		res.IsAudioCodecOk = true
		res.RawAudioStream = audioStreams[0]

		if len(req.AudioCodecs) > 0 {
			for _, as := range audioStreams {
				if !matchesAnyFold(as.CodecName, req.AudioCodecs) {
					res.IsAudioCodecOk = false
					break
				}
			}
		}
	}

	return res
}

// AppendFindings переводит результат проверки в сообщения: жёсткие
// несоответствия пополняют errors, мягкие — warnings.
func AppendFindings(res *CheckResult, req Requirements, errors, warnings *[]string) {
	if !res.IsPackageFormatOk {
		*errors = append(*errors, fmt.Sprintf("the video package format (%s) is not as expected (expected %s)",
			res.RawProbe.Format.FormatName, joinExpected(req.PackageFormats)))
	}
	if !res.IsVideoCodecOk {
		*errors = append(*errors, fmt.Sprintf("the video codec (%s) is not as expected (expected %s)",
			streamCodec(res.RawVideoStream), joinExpected(req.VideoCodecs)))
	}
	if !res.HasExactlyOneVideoStream {
		*errors = append(*errors, "the file has either none or too many video streams")
	}
	if !res.IsFrameSizeOk {
		sizes := make([]string, len(req.FrameSizes))
		for i, s := range req.FrameSizes {
			sizes[i] = s.String()
		}
		*errors = append(*errors, fmt.Sprintf("the width and/or height of the video are not as expected (expected %s)",
			joinExpected(sizes)))
	}
	if !res.IsFrameRateOk {
		rate := ""
		if res.RawVideoStream != nil {
			rate = res.RawVideoStream.RFrameRate
		}
		*errors = append(*errors, fmt.Sprintf("the frame rate (%s) is not as expected (expected %s)",
			rate, joinExpected(req.FrameRates)))
	}
	if !res.HasAudioStream {
		*errors = append(*errors, "the file does not have an audio stream")
	}
	if res.HasTooManyAudioStreams {
		*errors = append(*errors, "the file has too many audio streams")
	}
	if !res.IsAudioCodecOk {
		*errors = append(*errors, fmt.Sprintf("the audio codec (%s) is not as expected (expected %s)",
			streamCodec(res.RawAudioStream), joinExpected(req.AudioCodecs)))
	}

	switch res.AspectRatio {
	case AspectRatioNotDefined:
		*warnings = append(*warnings, "the aspect ratio of the video is not explicitly defined")
	case AspectRatioDifferent:
		ratio := ""
		if res.RawVideoStream != nil {
			ratio = res.RawVideoStream.DisplayAspectRatio
		}
		*errors = append(*errors, fmt.Sprintf("the defined aspect ratio (%s) is not as expected (expected %s)",
			ratio, req.AspectRatio))
	}

	switch res.Duration {
	case DurationTooLong:
		*errors = append(*errors, fmt.Sprintf("the duration of the video (%ss) is too long", res.RawProbe.Format.Duration))
	case DurationTooShort:
		*errors = append(*errors, fmt.Sprintf("the duration of the video (%ss) is too short", res.RawProbe.Format.Duration))
	case DurationLongerThanRecommended:
		*warnings = append(*warnings, fmt.Sprintf("the duration of the video (%ss) is longer than recommended", res.RawProbe.Format.Duration))
	}
}

// matchAnyToken проверяет, совпадает ли хоть один токен из списка
// через запятую с любым допустимым значением (без учёта регистра).
// Пустой список допустимых значений принимает всё.
func matchAnyToken(commaSeparated string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, token := range strings.Split(commaSeparated, ",") {
		if matchesAnyFold(token, allowed) {
			return true
		}
	}
	return false
}

// matchesAnyFold — точное совпадение без учёта регистра с любым из allowed.
// Пустой список принимает всё.
func matchesAnyFold(value string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}

// containsExact — точное строковое совпадение с любым из списка.
func containsExact(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// joinExpected форматирует список допустимых значений для сообщения.
func joinExpected(values []string) string {
	return strings.Join(values, ", or ")
}

// streamCodec возвращает имя кодека потока, устойчиво к nil.
func streamCodec(s *ProbeStream) string {
	if s == nil {
		return ""
	}
	return s.CodecName
}
