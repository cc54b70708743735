// Package audio provides WAV container framing and crossfade stitching for
// 16-bit mono PCM streams.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Format conventions for all audio produced by the service.
const (
	// HeaderSize is the canonical RIFF/WAVE header length. A sink holding
	// this many bytes or fewer carries no audio data.
	HeaderSize = 44

	// DefaultSampleRate matches the Orpheus codec output rate.
	DefaultSampleRate = 24000

	channelsMono   = 1
	bytesPerSample = 2
	bitsPerSample  = 16

	filePermissions = 0o600
)

// Static errors.
var (
	ErrNotRIFF           = errors.New("not a RIFF/WAVE file")
	ErrUnsupportedFormat = errors.New("unsupported WAV encoding")
	ErrNoDataChunk       = errors.New("no data chunk found")
)

// Params describes the format of a decoded WAV stream.
type Params struct {
	Channels   int
	SampleRate int
	BitDepth   int
}

// Writer writes a 16-bit mono PCM stream into a WAV container. The header is
// written up front with zero sizes and patched on Close, so the file stays
// parseable only after a successful Close.
type Writer struct {
	file       *os.File
	sampleRate int
	dataBytes  int
}

// NewWriter creates the output file and writes a provisional header.
func NewWriter(path string, sampleRate int) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file '%s': %w", path, err)
	}

	writer := &Writer{
		file:       file,
		sampleRate: sampleRate,
		dataBytes:  0,
	}

	err = writer.writeHeader()
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	return writer, nil
}

// Write appends raw PCM bytes to the data chunk.
func (w *Writer) Write(pcm []byte) (int, error) {
	written, err := w.file.Write(pcm)

	w.dataBytes += written
	if err != nil {
		return written, fmt.Errorf("failed to write PCM data: %w", err)
	}

	return written, nil
}

// BytesWritten reports the PCM payload size written so far.
func (w *Writer) BytesWritten() int {
	return w.dataBytes
}

// Close patches the chunk sizes in the header and closes the file.
func (w *Writer) Close() error {
	_, err := w.file.Seek(0, io.SeekStart)
	if err != nil {
		_ = w.file.Close()

		return fmt.Errorf("failed to rewind WAV header: %w", err)
	}

	err = w.writeHeader()
	if err != nil {
		_ = w.file.Close()

		return err
	}

	err = w.file.Close()
	if err != nil {
		return fmt.Errorf("failed to close WAV file: %w", err)
	}

	return nil
}

func (w *Writer) writeHeader() error {
	header := make([]byte, HeaderSize)

	byteRate := w.sampleRate * channelsMono * bytesPerSample

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(HeaderSize-8+w.dataBytes))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], channelsMono)
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], channelsMono*bytesPerSample)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(w.dataBytes))

	_, err := w.file.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}

	return nil
}

// ReadFile decodes a WAV file into int16 samples plus its format parameters.
func ReadFile(path string) ([]int16, Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Params{}, fmt.Errorf("failed to read WAV file '%s': %w", path, err)
	}

	return Decode(data)
}

// Decode parses a WAV byte stream. Only uncompressed PCM is supported; the
// sample width must be 16 bits.
func Decode(data []byte) ([]int16, Params, error) {
	if len(data) < HeaderSize ||
		string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Params{}, ErrNotRIFF
	}

	var params Params

	var pcm []byte

	// Walk the chunk list; fmt and data may be separated by extra chunks.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if body+chunkLen > len(data) {
			chunkLen = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, Params{}, ErrUnsupportedFormat
			}

			encoding := binary.LittleEndian.Uint16(data[body : body+2])
			params.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			params.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			params.BitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))

			if encoding != 1 || params.BitDepth != bitsPerSample {
				return nil, Params{}, fmt.Errorf(
					"%w: encoding %d, %d-bit",
					ErrUnsupportedFormat, encoding, params.BitDepth,
				)
			}
		case "data":
			pcm = data[body : body+chunkLen]
		}

		// Chunks are word-aligned.
		offset = body + chunkLen + chunkLen%2
	}

	if pcm == nil {
		return nil, Params{}, ErrNoDataChunk
	}

	return BytesToSamples(pcm), params, nil
}

// BytesToSamples converts little-endian PCM bytes to int16 samples. A
// trailing odd byte is dropped.
func BytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}

	return samples
}

// SamplesToBytes converts int16 samples to little-endian PCM bytes.
func SamplesToBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
	}

	return pcm
}
