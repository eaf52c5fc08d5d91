// Package audio provides the voice changer stage for outgoing call audio.
//
// The audio graph hands the voice changer fixed-size blocks of mono
// float32 samples at its own cadence (for example 4096 samples at 48 kHz,
// roughly 12 blocks per second). Each block runs through:
//
//	Input block → Ring buffer → Pitch/speed read-back → Robotic → Echo → Limiter → Output block
//
// # Pitch Shifter
//
// PitchShifter appends every input block to a RingBuffer, whether or not
// the changer is enabled, and reads the output back from a fractional
// playback cursor advancing 2^(semitones/12)×speed samples per output
// sample:
//
//	store := audio.NewVoiceStore(audio.DefaultVoiceChangerSettings())
//	shifter, err := audio.NewPitchShifter(audio.ShifterConfig{
//	    SampleRate: 48000,
//	    BlockSize:  4096,
//	}, store)
//	if err != nil {
//	    return err
//	}
//	defer shifter.Close()
//
//	on, pitch := true, 5.0
//	store.Update(audio.VoiceUpdate{Enabled: &on, PitchShift: &pitch})
//
//	out, err := shifter.Process(block)
//
// The playback cursor is kept at least one block (scaled by the current
// factor) behind the write cursor, so it never reads samples that have
// not been written yet. The ring must hold at least MinCapacity samples;
// the default is DefaultRingBlocks blocks.
//
// Settings are clamped (pitch to ±12 semitones, speed to 0.8-1.5, robotic
// and echo to 0-1) and read once per block.
//
// # Effects
//
// AudioEffect is the common interface for per-block processing. The
// package ships GainEffect and LimiterEffect, and PitchShifter itself
// satisfies AudioEffect, so stages can be composed with EffectChain:
//
//	chain := audio.NewEffectChain()
//	chain.AddEffect(gain)
//	chain.AddEffect(shifter)
//	out, err := chain.Process(block)
//
// # Incoming Audio
//
// PacketSource accepts RTP packets carrying Opus, drops duplicates by
// sequence number, decodes with pion/opus, resamples to the graph rate,
// and re-blocks with Blocker:
//
//	src, err := audio.NewPacketSource(nil, 48000, 4096)
//	blocks, err := src.WriteRTP(packet)
//	for _, b := range blocks {
//	    out, _ := shifter.Process(b)
//	    play(out)
//	}
package audio
