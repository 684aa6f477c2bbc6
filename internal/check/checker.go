// Пакет check — конвейер проверки загруженных материалов.
// FileChecker выбирает проверку по категории материала и складывает
// человекочитаемые замечания в слот записи. Отказ проверки не
// прерывает окружающую транзакцию загрузки.
package check

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/confcollect/collector/internal/catalog"
	"github.com/confcollect/collector/internal/check/audio"
	"github.com/confcollect/collector/internal/check/image"
	"github.com/confcollect/collector/internal/check/subs"
	"github.com/confcollect/collector/internal/check/video"
	"github.com/confcollect/collector/internal/domain/model"
)

// checkFailedMessage — единственное сообщение, которое попадает в
// запись при любом внутреннем сбое проверки.
const checkFailedMessage = "the file could not be checked automatically"

// VideoChecker — проверка видеофайла. Реализуется video.Checker.
type VideoChecker interface {
	Check(path string, req video.Requirements) (*video.CheckResult, error)
}

// AudioChecker — проверка звуковой дорожки. Реализуется audio.Checker.
type AudioChecker interface {
	Check(path string) (audio.CheckResult, error)
}

// FileChecker — диспетчер проверок по категории материала.
type FileChecker struct {
	video  VideoChecker
	audio  AudioChecker
	logger *slog.Logger
}

// NewFileChecker создаёт диспетчер. Инструментальные проверки (видео
// и звук) требуют внешних бинарников ffprobe и ffmpeg, поэтому
// собираются заранее и передаются готовыми.
func NewFileChecker(videoChecker VideoChecker, audioChecker AudioChecker, logger *slog.Logger) *FileChecker {
	return &FileChecker{
		video:  videoChecker,
		audio:  audioChecker,
		logger: logger,
	}
}

// PerformChecks проверяет файл по правилам его типа и дописывает
// замечания в слот записи. Любая паника или ошибка проверки
// сворачивается в одно общее сообщение и не распространяется выше.
func (c *FileChecker) PerformChecks(path string, file *model.CollectedFile, ftd catalog.FileTypeDescriptor) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("паника при проверке файла",
				"path", path, "fileType", ftd.Id, "panic", r)
			file.Errors = append(file.Errors, checkFailedMessage)
		}
	}()

	if ftd.FileType == catalog.FileTypeVideo {
		if ftd.CheckInfo == nil || ftd.CheckInfo.VideoRequirements == nil {
			return
		}
		c.checkVideo(path, file, ftd.CheckInfo.VideoRequirements.Requirements())
		return
	}

	switch ftd.FileType {
	case catalog.FileTypeSubtitles:
		var ok bool
		var reason string
		var err error
		if strings.HasSuffix(strings.ToLower(file.FileName), ".sbv") {
			ok, reason, err = subs.CheckSBV(path)
		} else {
			ok, reason, err = subs.CheckSRT(path)
		}
		if err != nil {
			c.reportFailure(path, file, ftd.Id, err)
			return
		}
		if !ok {
			file.Errors = append(file.Errors, reason)
		}

	case catalog.FileTypeImage:
		var maxSize *image.Size
		if ftd.CheckInfo != nil {
			maxSize = ftd.CheckInfo.ImageMaxSize
		}
		ok, reason, err := image.CheckPNG(path, maxSize)
		if err != nil {
			c.reportFailure(path, file, ftd.Id, err)
			return
		}
		if !ok {
			file.Errors = append(file.Errors, reason)
		}

	case catalog.FileTypePdf, catalog.FileTypeText, catalog.FileTypeOther:
		// Автоматических проверок нет
	}
}

// checkVideo выполняет проверку видео и безусловно следом проверку
// звуковой дорожки того же файла; замечания обеих проверок сливаются
// в одну запись.
func (c *FileChecker) checkVideo(path string, file *model.CollectedFile, req video.Requirements) {
	res, err := c.video.Check(path, req)
	if err != nil {
		c.reportFailure(path, file, "video", err)
		return
	}
	video.AppendFindings(res, req, &file.Errors, &file.Warnings)

	ares, err := c.audio.Check(path)
	if err != nil {
		c.reportFailure(path, file, "audio", err)
		return
	}
	audio.AppendFindings(ares, &file.Errors, &file.Warnings)
}

// reportFailure логирует сбой инструмента и дописывает в запись одно
// общее сообщение.
func (c *FileChecker) reportFailure(path string, file *model.CollectedFile, kind string, err error) {
	c.logger.Error(fmt.Sprintf("сбой проверки %s", kind), "path", path, "error", err)
	file.Errors = append(file.Errors, checkFailedMessage)
}
