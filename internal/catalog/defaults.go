package catalog

import (
	"github.com/confcollect/collector/internal/check/image"
	"github.com/confcollect/collector/internal/check/video"
)

// Наборы справочников по умолчанию. Записываются в файлы конфигурации
// при первом запуске, дальше служат только образцом для правки.

func baseVideoType() FileTypeDescriptor {
	recommended := int64(9 * 60)
	return FileTypeDescriptor{
		Id:             "video-full",
		Name:           "Presentation Video",
		FileName:       "Presentation",
		FileExtensions: []string{"mp4"},
		FileType:       FileTypeVideo,
		PerformChecks:  true,
		CheckInfo: &CheckInfo{
			MinFileSize: 1024,
			MaxFileSize: 500 * 1024 * 1024,
			VideoRequirements: &VideoRequirementsConfig{
				MinDurationSec:            60,
				MaxDurationSec:            12 * 60,
				MaxRecommendedDurationSec: &recommended,
				PackageFormats:            []string{"mp4"},
				VideoCodecs:               []string{"h264"},
				AudioCodecs:               []string{"aac"},
				FrameRates:                []string{"30/1"},
				FrameSizes:                []video.FrameSize{{Width: 1920, Height: 1080}},
				MaxNumAudioStreams:        1,
				AspectRatio:               "16:9",
				CheckVoiceRecording:       true,
			},
		},
	}
}

func subtitlesType(id, name, fileName string) FileTypeDescriptor {
	return FileTypeDescriptor{
		Id:             id,
		Name:           name,
		FileName:       fileName,
		FileExtensions: []string{"srt", "sbv"},
		FileType:       FileTypeSubtitles,
		PerformChecks:  true,
		CheckInfo: &CheckInfo{
			MinFileSize: 10,
			MaxFileSize: 2 * 1024 * 1024,
		},
	}
}

// DefaultFileTypes — типы материалов стандартного набора конференции.
func DefaultFileTypes() []FileTypeDescriptor {
	full := baseVideoType()

	short := baseVideoType()
	short.Id = "video-short"
	rec := int64(7 * 60)
	short.CheckInfo.VideoRequirements.MaxRecommendedDurationSec = &rec
	short.CheckInfo.VideoRequirements.MaxDurationSec = 9 * 60

	other := baseVideoType()
	other.Id = "video-other"
	other.CheckInfo.VideoRequirements.MaxRecommendedDurationSec = nil
	other.CheckInfo.VideoRequirements.MaxDurationSec = 60 * 60

	preview := baseVideoType()
	preview.Id = "video-ff"
	preview.Name = "Video Preview"
	preview.FileName = "Preview"
	preview.CheckInfo.MaxFileSize = 30 * 1024 * 1024
	preview.CheckInfo.VideoRequirements.MaxRecommendedDurationSec = nil
	preview.CheckInfo.VideoRequirements.MinDurationSec = 15
	preview.CheckInfo.VideoRequirements.MaxDurationSec = 26

	img := FileTypeDescriptor{
		Id:             "image",
		Name:           "Representative Image",
		FileName:       "Image",
		FileExtensions: []string{"png"},
		FileType:       FileTypeImage,
		PerformChecks:  true,
		CheckInfo: &CheckInfo{
			MinFileSize:  10,
			MaxFileSize:  5 * 1024 * 1024,
			ImageMaxSize: &image.Size{Width: 1920, Height: 1080},
		},
	}

	caption := FileTypeDescriptor{
		Id:             "image-caption",
		Name:           "Representative Image Caption",
		FileName:       "Image",
		FileExtensions: []string{"txt"},
		FileType:       FileTypeText,
		PerformChecks:  true,
		CheckInfo: &CheckInfo{
			MinFileSize: 10,
			MaxFileSize: 100 * 1024,
		},
	}

	return []FileTypeDescriptor{
		full,
		short,
		other,
		preview,
		subtitlesType("video-full-subs", "Presentation Video Subtitles", "Presentation"),
		subtitlesType("video-ff-subs", "Video Preview Subtitles", "Preview"),
		img,
		caption,
	}
}

// DefaultEvents — события стандартного набора.
func DefaultEvents() []EventDescriptor {
	fullSet := []string{
		"video-full",
		"video-full-subs",
		"video-ff",
		"video-ff-subs",
		"image",
		"image-caption",
	}
	shortSet := []string{
		"video-short",
		"video-full-subs",
		"video-ff",
		"video-ff-subs",
		"image",
		"image-caption",
	}

	events := make([]EventDescriptor, 0, 6)
	for _, id := range []string{"v-full", "v-tvcg", "v-cga", "v-vr", "v-test"} {
		events = append(events, EventDescriptor{EventId: id, FilesToCollect: append([]string(nil), fullSet...)})
	}
	events = append(events, EventDescriptor{EventId: "v-short", FilesToCollect: shortSet})
	return events
}
