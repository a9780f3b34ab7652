package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// beepPlayer plays clips in-process through the beep speaker. All ten clips
// are decoded into memory buffers at startup so Play never touches the
// filesystem; the first clip's format drives the speaker sample rate and
// the others are resampled to it.
type beepPlayer struct {
	buffers [maxIntensity + 1]*beep.Buffer // index 1..10
	format  beep.Format
	logger  *slog.Logger
}

// newBeepPlayer decodes 1.wav .. 10.wav from dir and initializes the
// speaker. Validation has already confirmed the files exist; decode errors
// here mean a file is not actually a wav.
func newBeepPlayer(dir string, logger *slog.Logger) (*beepPlayer, error) {
	p := &beepPlayer{logger: logger}

	for level := minIntensity; level <= maxIntensity; level++ {
		path := soundFilePath(dir, level)

		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}

		stream, format, err := wav.Decode(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}

		if level == minIntensity {
			p.format = format
		}

		buf := beep.NewBuffer(p.format)
		if format.SampleRate == p.format.SampleRate {
			buf.Append(stream)
		} else {
			buf.Append(beep.Resample(4, format.SampleRate, p.format.SampleRate, stream))
		}
		stream.Close()

		p.buffers[level] = buf
	}

	if err := speaker.Init(p.format.SampleRate, p.format.SampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}

	return p, nil
}

// Play blocks until the clip for level has finished.
func (p *beepPlayer) Play(level int) error {
	if level < minIntensity || level > maxIntensity {
		return fmt.Errorf("intensity level %d out of range", level)
	}

	buf := p.buffers[level]
	p.logger.Debug("playing clip", "backend", backendBeep, "level", level, "samples", buf.Len())

	done := make(chan struct{})
	speaker.Play(beep.Seq(buf.Streamer(0, buf.Len()), beep.Callback(func() {
		close(done)
	})))
	<-done

	return nil
}
