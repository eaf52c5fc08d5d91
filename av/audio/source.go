package audio

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// replayWindow is how many sequence numbers behind the newest packet are
// still tracked for duplicate detection.
const replayWindow = 64

// PacketSource turns incoming RTP voice packets into fixed-size blocks at
// the audio graph's rate: RTP is unmarshalled, duplicates are dropped,
// the payload is decoded, resampled when needed, and re-blocked.
type PacketSource struct {
	decoder    PacketDecoder
	blocker    *Blocker
	sampleRate uint32

	mu        sync.Mutex
	resampler *Resampler
	started   bool
	highest   uint16
	seen      uint64 // bit i set: highest-i received

	received   uint64
	duplicates uint64
	failures   uint64
}

// PacketSourceStats counts packets by outcome.
type PacketSourceStats struct {
	Received   uint64
	Duplicates uint64
	Failures   uint64
}

// NewPacketSource creates a source producing blocks of blockSize samples
// at sampleRate. A nil decoder uses Opus.
func NewPacketSource(decoder PacketDecoder, sampleRate uint32, blockSize int) (*PacketSource, error) {
	if sampleRate == 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	blocker, err := NewBlocker(blockSize)
	if err != nil {
		return nil, err
	}
	if decoder == nil {
		decoder = NewOpusDecoder()
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewPacketSource",
		"sample_rate": sampleRate,
		"block_size":  blockSize,
	}).Info("Creating RTP packet source")

	return &PacketSource{
		decoder:    decoder,
		blocker:    blocker,
		sampleRate: sampleRate,
	}, nil
}

// WriteRTP consumes one marshalled RTP packet and returns any blocks it
// completed. Duplicate or too-old packets return no blocks and no error.
func (s *PacketSource) WriteRTP(buf []byte) ([][]float32, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		s.mu.Lock()
		s.failures++
		s.mu.Unlock()
		return nil, fmt.Errorf("rtp unmarshal: %w", err)
	}
	return s.WritePacket(&pkt)
}

// WritePacket is WriteRTP for an already parsed packet.
func (s *PacketSource) WritePacket(pkt *rtp.Packet) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accept(pkt.SequenceNumber) {
		s.duplicates++
		logrus.WithFields(logrus.Fields{
			"function":        "PacketSource.WritePacket",
			"sequence_number": pkt.SequenceNumber,
		}).Debug("Dropping duplicate RTP packet")
		return nil, nil
	}
	s.received++

	pcm, rate, err := s.decoder.Decode(pkt.Payload)
	if err != nil {
		s.failures++
		return nil, err
	}

	if rate != 0 && rate != s.sampleRate {
		if s.resampler == nil || s.resampler.GetInputRate() != rate {
			s.resampler, err = NewResampler(ResamplerConfig{InputRate: rate, OutputRate: s.sampleRate})
			if err != nil {
				return nil, err
			}
		}
		pcm = s.resampler.Resample(pcm)
	}

	return s.blocker.Push(pcm), nil
}

// accept records seq and reports whether it is new. Sequence numbers
// wrap at 2^16; a jump forward of less than half the space is newer.
func (s *PacketSource) accept(seq uint16) bool {
	if !s.started {
		s.started = true
		s.highest = seq
		s.seen = 1
		return true
	}

	diff := seq - s.highest
	if diff != 0 && diff < 0x8000 {
		// newer than anything seen
		if diff >= replayWindow {
			s.seen = 0
		} else {
			s.seen <<= diff
		}
		s.seen |= 1
		s.highest = seq
		return true
	}

	back := s.highest - seq
	if back >= replayWindow {
		return false
	}
	bit := uint64(1) << back
	if s.seen&bit != 0 {
		return false
	}
	s.seen |= bit
	return true
}

// Flush returns the final partial block padded with silence.
func (s *PacketSource) Flush() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocker.Flush()
}

// Stats returns packet counters.
func (s *PacketSource) Stats() PacketSourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PacketSourceStats{
		Received:   s.received,
		Duplicates: s.duplicates,
		Failures:   s.failures,
	}
}
