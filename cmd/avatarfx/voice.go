package main

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/opd-ai/avatarfx/av"
	"github.com/opd-ai/avatarfx/av/audio"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newVoiceCmd(opts *options) *cobra.Command {
	var in, out string
	var pitch, speed, robotic, echo, gain float64

	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Run a WAV file through the voice changer",
		Long: `Read a PCM WAV file, apply pitch shift, speed, robotic and echo effects
block by block exactly as the live audio pipeline does, and write a 16-bit
mono WAV file at the input sample rate.`,
		Example: "  avatarfx voice --in me.wav --out chipmunk.wav --pitch 7",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			samples, rate, err := readWAV(in)
			if err != nil {
				return err
			}

			sc, err := cfg.SessionConfig()
			if err != nil {
				return err
			}
			sc.SampleRate = rate
			sc.Voice.Enabled = true

			session := av.NewSession(sc, nil, nil)
			defer session.Close()

			preset, err := loadPreset(cfg)
			if err != nil {
				return err
			}
			if preset != nil {
				preset.ApplyTo(session)
			}
			session.Voice().Update(voiceFlags(cmd, pitch, speed, robotic, echo))

			task, err := session.NewAudioTask(nil)
			if err != nil {
				return err
			}

			pre := audio.NewEffectChain()
			defer pre.Close()
			if cmd.Flags().Changed("gain") {
				g, err := audio.NewGainEffect(gain)
				if err != nil {
					return err
				}
				pre.AddEffect(g)
			}

			processed, err := processVoice(task, pre, samples, sc.BlockSize)
			if err != nil {
				return err
			}
			if err := writeWAV(out, processed, rate); err != nil {
				return err
			}

			s := session.Voice().Get()
			opts.logger.WithFields(logrus.Fields{
				"function":    "voice",
				"samples":     len(processed),
				"sample_rate": rate,
				"pitch_shift": s.PitchShift,
				"speed":       s.Speed,
				"clipped":     task.Shifter().Clipped(),
				"output":      out,
			}).Info("Voice processed")
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "input WAV file")
	cmd.Flags().StringVar(&out, "out", "", "output WAV file")
	cmd.Flags().Float64Var(&pitch, "pitch", 0, "pitch shift in semitones (-12..12)")
	cmd.Flags().Float64Var(&speed, "speed", 1, "speed factor (0.8..1.5)")
	cmd.Flags().Float64Var(&robotic, "robotic", 0, "robotic effect amount (0..1)")
	cmd.Flags().Float64Var(&echo, "echo", 0, "echo amount (0..1)")
	cmd.Flags().Float64Var(&gain, "gain", 1, "input gain applied before the voice changer (0..4)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// voiceFlags turns the flags the user actually set into a partial update.
func voiceFlags(cmd *cobra.Command, pitch, speed, robotic, echo float64) audio.VoiceUpdate {
	var u audio.VoiceUpdate
	if cmd.Flags().Changed("pitch") {
		u.PitchShift = &pitch
	}
	if cmd.Flags().Changed("speed") {
		u.Speed = &speed
	}
	if cmd.Flags().Changed("robotic") {
		u.Robotic = &robotic
	}
	if cmd.Flags().Changed("echo") {
		u.Echo = &echo
	}
	return u
}

// processVoice cuts samples into blocks, runs each through pre and then
// task, and returns len(samples) output samples aligned to the input.
// Zero blocks are pushed after the input until the shifter's playback
// latency is covered, and that many leading samples are dropped.
func processVoice(task *av.AudioTask, pre *audio.EffectChain, samples []float32, blockSize int) ([]float32, error) {
	blocker, err := audio.NewBlocker(blockSize)
	if err != nil {
		return nil, err
	}

	blocks := blocker.Push(samples)
	if tail := blocker.Flush(); tail != nil {
		blocks = append(blocks, tail)
	}

	out := make([]float32, 0, (len(blocks)+1)*blockSize)
	run := func(b []float32) error {
		in, err := pre.Process(b)
		if err != nil {
			return err
		}
		processed, err := task.Process(in)
		if err != nil {
			return err
		}
		out = append(out, processed...)
		return nil
	}

	for _, b := range blocks {
		if err := run(b); err != nil {
			return nil, err
		}
	}

	latency := task.Shifter().Latency()
	for len(out) < latency+len(samples) {
		if err := run(make([]float32, blockSize)); err != nil {
			return nil, err
		}
	}
	return out[latency : latency+len(samples)], nil
}

// readWAV decodes a PCM WAV file into mono float32 samples.
func readWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: not a valid WAV file", path)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	switch buf.SourceBitDepth {
	case 16, 24, 32:
	default:
		return nil, 0, fmt.Errorf("%s: unsupported bit depth %d", path, buf.SourceBitDepth)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := float32(int64(1) << (buf.SourceBitDepth - 1))

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / scale
		}
		out[i] = sum / float32(channels)
	}
	return out, buf.Format.SampleRate, nil
}

// writeWAV encodes mono float32 samples as a 16-bit PCM WAV file.
func writeWAV(path string, samples []float32, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	pcm := audio.Float32ToInt16(samples)
	data := make([]int, len(pcm))
	for i, s := range pcm {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
