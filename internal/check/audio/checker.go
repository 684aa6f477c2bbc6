package audio

// Quality — качественная оценка одного аспекта звука.
type Quality int

const (
	// QualityGood — замечаний нет
	QualityGood Quality = iota
	// QualityMedium — пограничное качество, предупреждение
	QualityMedium
	// QualityBad — качество недопустимо, ошибка
	QualityBad
)

// CheckResult — итоговая классификация звуковой дорожки.
type CheckResult struct {
	Volume          Quality
	Clipping        Quality
	BackgroundNoise Quality
}

// Checker — классификатор качества звука поверх Analyzer.
type Checker struct {
	analyzer *Analyzer
}

// NewChecker создаёт классификатор.
func NewChecker(analyzer *Analyzer) *Checker {
	return &Checker{analyzer: analyzer}
}

// Check анализирует звуковую дорожку файла и классифицирует её.
// Ошибка возвращается только при сбое декодирования; содержательные
// проблемы звука — это данные в CheckResult, а не ошибки.
func (c *Checker) Check(path string) (CheckResult, error) {
	res, err := c.analyzer.Analyze(path)
	if err != nil {
		return CheckResult{}, err
	}

	amp := AnalyzeAmplitudeHistogram(res.Histogram)
	spec := AnalyzeSpectrum(res.SpectrumHighAmp, res.SpectrumLowAmp)
	return DetermineQuality(amp, spec), nil
}

// Пороги классификации. Политика фиксированная: значения подобраны
// по записям докладов и не настраиваются через конфигурацию.
const (
	volumeBadDb     = -28
	volumeMediumDb  = -24
	clippingBad     = 0.2
	clippingMedium  = 0.05
	noiseBadSnr     = 11
	noiseMediumSnr  = 20
	noiseQuietDb    = -45
	noiseAboveShare = 0.95
)

// DetermineQuality сводит скалярные метрики к трём оценкам качества.
func DetermineQuality(amp AmplitudeStats, spec SpectrumStats) CheckResult {
	var res CheckResult

	switch {
	case amp.AverageDb < volumeBadDb:
		res.Volume = QualityBad
	case amp.AverageDb < volumeMediumDb:
		res.Volume = QualityMedium
	default:
		res.Volume = QualityGood
	}

	switch {
	case amp.Clipping > clippingBad:
		res.Clipping = QualityBad
	case amp.Clipping > clippingMedium:
		res.Clipping = QualityMedium
	default:
		res.Clipping = QualityGood
	}

	if res.Volume != QualityBad && spec.SignalToNoise < noiseBadSnr {
		res.BackgroundNoise = QualityBad
	}
	if amp.AverageDbWhenQuieter > noiseQuietDb &&
		amp.AboveNoise > noiseAboveShare &&
		spec.SignalToNoise < noiseMediumSnr {
		res.BackgroundNoise = QualityMedium
	}

	return res
}

// AppendFindings переводит классификацию в фиксированные сообщения:
// Bad пополняет errors, Medium — warnings, Good не добавляет ничего.
func AppendFindings(res CheckResult, errors, warnings *[]string) {
	switch res.BackgroundNoise {
	case QualityMedium:
		*warnings = append(*warnings, "the audio seems to have some background noise")
	case QualityBad:
		*errors = append(*errors, "the audio has too much background noise")
	}

	switch res.Clipping {
	case QualityMedium:
		*warnings = append(*warnings, "the audio signal sometimes oversteers")
	case QualityBad:
		*errors = append(*errors, "the audio signal oversteers too often, try to stay below -5db")
	}

	switch res.Volume {
	case QualityMedium:
		*warnings = append(*warnings, "the volume of the audio seems to be a bit low on average")
	case QualityBad:
		*errors = append(*errors, "the volume of the audio is too low on average")
	}
}
