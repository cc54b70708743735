package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/book-expert/logger"
)

const millisecondsPerSecond = 1000

// Static stitching errors.
var (
	ErrNoInputFiles  = errors.New("no input files to stitch")
	ErrFirstFile     = errors.New("failed to decode first input file")
	ErrNoValidInputs = errors.New("no valid input files were processed")
)

// Stitch concatenates the WAV files at inputPaths into a single WAV at
// outputPath, blending crossfadeMs of overlap at each boundary. A single
// input is copied byte-for-byte. Format parameters are taken from the first
// file; later files with different parameters are warned about and merged
// anyway. The first file failing to decode aborts the stitch; later
// failures skip that segment.
func Stitch(inputPaths []string, outputPath string, crossfadeMs int, log *logger.Logger) error {
	if len(inputPaths) == 0 {
		return ErrNoInputFiles
	}

	if len(inputPaths) == 1 {
		return copyFile(inputPaths[0], outputPath)
	}

	log.Info("Stitching %d WAV files with %dms crossfade", len(inputPaths), crossfadeMs)

	merged, params, err := mergeWithCrossfade(inputPaths, crossfadeMs, log)
	if err != nil {
		return err
	}

	return writeStitched(outputPath, merged, params)
}

func mergeWithCrossfade(
	inputPaths []string,
	crossfadeMs int,
	log *logger.Logger,
) ([]int16, Params, error) {
	var merged []int16

	var firstParams Params

	haveParams := false

	for i, path := range inputPaths {
		samples, params, err := ReadFile(path)
		if err != nil {
			if i == 0 {
				return nil, Params{}, fmt.Errorf("%w: %w", ErrFirstFile, err)
			}

			log.Error("Skipping segment %d ('%s'): %v", i, path, err)

			continue
		}

		if !haveParams {
			firstParams = params
			haveParams = true
		} else if params != firstParams {
			log.Warn("WAV file '%s' has different parameters (%+v vs %+v)",
				path, params, firstParams)
		}

		merged = appendWithCrossfade(
			merged,
			samples,
			crossfadeSamples(firstParams.SampleRate, crossfadeMs),
		)
	}

	if !haveParams {
		return nil, Params{}, ErrNoValidInputs
	}

	return merged, firstParams, nil
}

// crossfadeSamples converts a crossfade duration to a sample count.
func crossfadeSamples(sampleRate, crossfadeMs int) int {
	return sampleRate * crossfadeMs / millisecondsPerSecond
}

// appendWithCrossfade joins next onto acc, blending fade samples of overlap
// with linear fade-out/fade-in weights when both sides are long enough.
// Short sides are concatenated directly; samples are never dropped to force
// a crossfade.
func appendWithCrossfade(acc, next []int16, fade int) []int16 {
	if len(acc) == 0 {
		return append(acc, next...)
	}

	if fade <= 1 || len(acc) < fade || len(next) < fade {
		return append(acc, next...)
	}

	tailStart := len(acc) - fade

	for i := 0; i < fade; i++ {
		progress := float64(i) / float64(fade-1)
		out := float64(acc[tailStart+i]) * (1 - progress)
		in := float64(next[i]) * progress

		acc[tailStart+i] = clipSample(out + in)
	}

	return append(acc, next[fade:]...)
}

func clipSample(value float64) int16 {
	if value > 32767 {
		return 32767
	}

	if value < -32768 {
		return -32768
	}

	return int16(value)
}

func writeStitched(outputPath string, samples []int16, params Params) error {
	writer, err := NewWriter(outputPath, params.SampleRate)
	if err != nil {
		return err
	}

	_, err = writer.Write(SamplesToBytes(samples))
	if err != nil {
		_ = writer.Close()

		return err
	}

	err = writer.Close()
	if err != nil {
		return err
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open '%s': %w", src, err)
	}

	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", dst, err)
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()

	if copyErr != nil {
		return fmt.Errorf("failed to copy '%s' to '%s': %w", src, dst, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close '%s': %w", dst, closeErr)
	}

	return nil
}
