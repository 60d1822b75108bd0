package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/samber/lo"
)

const (
	QualityHighest      = "highest"
	QualityLowest       = "lowest"
	QualityHighestAudio = "highestaudio"
	QualityLowestAudio  = "lowestaudio"
	QualityHighestVideo = "highestvideo"
	QualityLowestVideo  = "lowestvideo"
)

// FormatHint maps a requested output format to the quality used when no
// format id or quality is given: webm means best audio, mp4 best muxed.
func FormatHint(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "webm":
		return QualityHighestAudio
	case "mp4":
		return QualityHighest
	}

	return ""
}

// SelectFormat picks a format by numeric id or by quality hint. An empty
// selector means highestaudio for mp3 targets and highest otherwise.
func SelectFormat(formats []entity.FormatDescriptor, selector string, target entity.Container) (entity.FormatDescriptor, error) {
	selector = strings.ToLower(strings.TrimSpace(selector))
	if selector == "" {
		selector = QualityHighest
		if target == entity.ContainerMP3 {
			selector = QualityHighestAudio
		}
	}

	if _, err := strconv.Atoi(selector); err == nil {
		f, ok := lo.Find(formats, func(f entity.FormatDescriptor) bool {
			return f.FormatID == selector
		})
		if !ok {
			return entity.FormatDescriptor{}, fmt.Errorf("%w: %w: id %s", common.ErrValidation, common.ErrFormatNotFound, selector)
		}

		return f, nil
	}

	var (
		candidates []entity.FormatDescriptor
		highest    bool
	)

	switch selector {
	case QualityHighest, QualityLowest:
		candidates = lo.Filter(formats, func(f entity.FormatDescriptor, _ int) bool {
			return f.HasAudio && f.HasVideo
		})
		highest = selector == QualityHighest
	case QualityHighestAudio, QualityLowestAudio:
		candidates = preferOnly(formats, func(f entity.FormatDescriptor) bool { return f.HasAudio }, func(f entity.FormatDescriptor) bool { return !f.HasVideo })
		highest = selector == QualityHighestAudio
	case QualityHighestVideo, QualityLowestVideo:
		candidates = preferOnly(formats, func(f entity.FormatDescriptor) bool { return f.HasVideo }, func(f entity.FormatDescriptor) bool { return !f.HasAudio })
		highest = selector == QualityHighestVideo
	default:
		return entity.FormatDescriptor{}, fmt.Errorf("%w: unknown quality %q", common.ErrValidation, selector)
	}

	if len(candidates) == 0 {
		return entity.FormatDescriptor{}, fmt.Errorf("%w: %w: quality %s", common.ErrValidation, common.ErrFormatNotFound, selector)
	}

	if highest {
		return lo.MaxBy(candidates, func(a, b entity.FormatDescriptor) bool {
			return bitrate(a) > bitrate(b)
		}), nil
	}

	return lo.MinBy(candidates, func(a, b entity.FormatDescriptor) bool {
		return bitrate(a) < bitrate(b)
	}), nil
}

// preferOnly returns the formats matching has and only, or those matching has
// when none match both.
func preferOnly(formats []entity.FormatDescriptor, has, only func(entity.FormatDescriptor) bool) []entity.FormatDescriptor {
	matching := lo.Filter(formats, func(f entity.FormatDescriptor, _ int) bool { return has(f) })
	pure := lo.Filter(matching, func(f entity.FormatDescriptor, _ int) bool { return only(f) })
	if len(pure) > 0 {
		return pure
	}

	return matching
}

func bitrate(f entity.FormatDescriptor) int {
	if f.Bitrate == nil {
		return 0
	}

	return *f.Bitrate
}
