package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"camera-color-judge/internal/domain"
)

// videoProbe holds the fields of ffprobe output we need
type videoProbe struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// probeSize returns the size of the first video stream of source
func probeSize(source string) (int, int, error) {
	probeStr, err := ffmpeg.Probe(source)
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe %s: %w", source, err)
	}

	var probe videoProbe
	if err := json.Unmarshal([]byte(probeStr), &probe); err != nil {
		return 0, 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return parseProbe(probe)
}

func parseProbe(probe videoProbe) (int, int, error) {
	for _, stream := range probe.Streams {
		if stream.CodecType == "video" && stream.Width > 0 && stream.Height > 0 {
			return stream.Width, stream.Height, nil
		}
	}
	return 0, 0, errors.New("no video stream found")
}

// ffmpegArgs builds the decoder pipeline: loop the source forever and
// emit raw bgr24 frames of width x height on stdout
func ffmpegArgs(source string, width, height int) *ffmpeg.Stream {
	return ffmpeg.Input(source, ffmpeg.KwArgs{"stream_loop": "-1"}).
		Output("pipe:1", ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": "bgr24",
			"s":       fmt.Sprintf("%dx%d", width, height),
		})
}

// FFmpegHandle decodes a video file or stream URL with ffmpeg. Reads are
// paced by the pipe: ffmpeg blocks until the previous frame was consumed.
type FFmpegHandle struct {
	source string
	width  int
	height int
	cmd    *exec.Cmd
	stdout io.ReadCloser

	mu     sync.Mutex
	closed bool
}

// OpenFFmpeg starts ffmpeg for config.Source. A zero size in config is
// taken from the source via ffprobe.
func OpenFFmpeg(config domain.DeviceConfig) (*FFmpegHandle, error) {
	if config.Source == "" {
		return nil, fmt.Errorf("%w: ffmpeg driver needs a source", domain.ErrDeviceUnavailable)
	}

	width, height := config.Width, config.Height
	if width <= 0 || height <= 0 {
		var err error
		width, height, err = probeSize(config.Source)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
		}
	}

	cmd := ffmpegArgs(config.Source, width, height).Compile()
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", domain.ErrDeviceUnavailable, err)
	}

	return &FFmpegHandle{
		source: config.Source,
		width:  width,
		height: height,
		cmd:    cmd,
		stdout: stdout,
	}, nil
}

// ID returns the source
func (h *FFmpegHandle) ID() string {
	return "ffmpeg:" + h.source
}

// Read returns the next decoded frame
func (h *FFmpegHandle) Read() (*domain.RawFrame, error) {
	return readRawFrame(h.stdout, h.width, h.height)
}

// Close stops ffmpeg
func (h *FFmpegHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	// Wait reports the kill; that is the expected outcome
	_ = h.cmd.Wait()
	return nil
}

// readRawFrame reads exactly one width x height bgr24 frame from r
func readRawFrame(r io.Reader, width, height int) (*domain.RawFrame, error) {
	data := make([]byte, width*height*3)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrNoFrame
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrFrameRead, err)
	}
	return &domain.RawFrame{Width: width, Height: height, Channels: 3, Data: data}, nil
}
