// Package track summarizes the tracks of a decoded MP4 file and expands
// their sample tables.
package track

import (
	"errors"
	"fmt"

	mp4 "github.com/tetsuo/mp4inspect"
)

// TrackKind distinguishes video and audio tracks.
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

func (k TrackKind) String() string {
	switch k {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	}
	return fmt.Sprintf("TrackKind(%d)", int(k))
}

// Track holds metadata for one track.
type Track struct {
	ID        uint32
	Kind      TrackKind
	TimeScale uint32
	Duration  uint64

	Width        uint16
	Height       uint16
	ChannelCount uint16
	SampleRate   uint32

	SampleDescIdx uint32

	codec string
	stbl  *mp4.Stbl
}

// Codec returns the MIME codec string (e.g. "avc1.64001e", "mp4a.40.2").
func (t *Track) Codec() string { return t.codec }

// FindTrack returns the track with the given ID, or nil.
func FindTrack(tracks []*Track, id uint32) *Track {
	for _, t := range tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

var (
	ErrNoMovie      = errors.New("track: file has no moov box")
	ErrInvalidTrack = errors.New("track: invalid track data")
	ErrCorruptData  = errors.New("track: corrupt sample table")
)

// FromFile returns the AVC video and AAC audio tracks of f. Tracks with
// another kind of sample entry, or with none, are left out.
func FromFile(f *mp4.File) ([]*Track, error) {
	if f.Moov == nil {
		return nil, ErrNoMovie
	}
	var tracks []*Track
	for _, trak := range f.Moov.Traks {
		t, err := fromTrak(trak)
		if err != nil {
			return nil, err
		}
		if t != nil {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

func fromTrak(trak *mp4.Trak) (*Track, error) {
	if trak.Tkhd == nil || trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, nil
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsd == nil || len(stbl.Stsd.Entries) == 0 {
		return nil, nil
	}

	t := &Track{
		ID:     trak.Tkhd.TrackID,
		Width:  uint16(trak.Tkhd.Width),
		Height: uint16(trak.Tkhd.Height),
		stbl:   stbl,
	}
	if t.ID == 0 {
		return nil, fmt.Errorf("%w: track_id 0", ErrInvalidTrack)
	}
	if m := trak.Mdia.Mdhd; m != nil {
		t.TimeScale = m.TimeScale
		t.Duration = m.Duration
	}
	if stbl.Stsc != nil && len(stbl.Stsc.Entries) > 0 {
		t.SampleDescIdx = stbl.Stsc.Entries[0].SampleDescriptionIndex
	}

	entry := stbl.Stsd.Entries[0]
	switch {
	case entry.Visual != nil:
		v := entry.Visual
		t.Kind = TrackVideo
		t.Width = v.Width
		t.Height = v.Height
		t.codec = "avc1"
		if v.AvcC != nil {
			t.codec = v.AvcC.Codec()
		}
	case entry.Audio != nil:
		a := entry.Audio
		t.Kind = TrackAudio
		t.ChannelCount = a.ChannelCount
		t.SampleRate = uint32(a.SampleRate)
		t.codec = "mp4a"
		if a.Esds != nil && a.Esds.ES != nil && a.Esds.ES.DecoderConfig != nil {
			dc := a.Esds.ES.DecoderConfig
			t.codec += fmt.Sprintf(".%x", dc.ObjectTypeIndication)
			if dc.AudioConfig != nil {
				t.codec += fmt.Sprintf(".%d", dc.AudioConfig.ObjectType)
			}
		}
	default:
		return nil, nil
	}
	return t, nil
}

// Sample represents a single media sample.
type Sample struct {
	TrackID            uint32
	Offset             int64
	Size               uint32
	Duration           uint32
	DTS                int64
	PresentationOffset int32
	IsSync             bool
}

// PTS returns the presentation timestamp.
func (s Sample) PTS() int64 {
	return s.DTS + int64(s.PresentationOffset)
}

// Samples expands the sample table into one entry per sample, in decoding
// order. Every table must cover every sample.
func (t *Track) Samples() ([]Sample, error) {
	st := t.stbl
	if st.Stsz == nil || st.Stts == nil || st.Stsc == nil {
		return nil, fmt.Errorf("track %d: %w: missing stsz, stts or stsc", t.ID, ErrInvalidTrack)
	}
	if st.Stco == nil {
		return nil, fmt.Errorf("track %d: %w: missing stco", t.ID, ErrInvalidTrack)
	}

	n := int(st.Stsz.SampleCount)
	if n == 0 {
		return []Sample{}, nil
	}
	stts, stsc, stco := st.Stts.Entries, st.Stsc.Entries, st.Stco.Entries
	if len(stts) == 0 || len(stsc) == 0 {
		return nil, fmt.Errorf("track %d: %w: empty stts or stsc", t.ID, ErrInvalidTrack)
	}
	if err := checkStsc(stsc); err != nil {
		return nil, fmt.Errorf("track %d: %w", t.ID, err)
	}
	var ctts []mp4.CttsEntry
	if st.Ctts != nil {
		ctts = st.Ctts.Entries
	}

	samples := make([]Sample, n)
	var (
		si, ti, ci, yi int
		sttsLeft       = stts[0].Count
		cttsLeft       uint32
		chunk          = 1
		inChunk        uint32
		offInChunk     int64
		dts            int64
	)
	if len(ctts) > 0 {
		cttsLeft = ctts[0].Count
	}

	for i := range n {
		for sttsLeft == 0 {
			ti++
			if ti >= len(stts) {
				return nil, fmt.Errorf("track %d: %w: stts covers %d of %d samples", t.ID, ErrCorruptData, i, n)
			}
			sttsLeft = stts[ti].Count
		}
		if chunk > len(stco) {
			return nil, fmt.Errorf("track %d: %w: sample %d in chunk %d, stco has %d", t.ID, ErrCorruptData, i+1, chunk, len(stco))
		}

		size := st.Stsz.SampleSize
		if size == 0 {
			size = st.Stsz.Entries[i]
		}
		s := Sample{
			TrackID:  t.ID,
			Offset:   int64(stco[chunk-1]) + offInChunk,
			Size:     size,
			Duration: stts[ti].Duration,
			DTS:      dts,
			IsSync:   true,
		}

		if len(ctts) > 0 {
			for cttsLeft == 0 && ci+1 < len(ctts) {
				ci++
				cttsLeft = ctts[ci].Count
			}
			if cttsLeft == 0 {
				return nil, fmt.Errorf("track %d: %w: ctts covers %d of %d samples", t.ID, ErrCorruptData, i, n)
			}
			s.PresentationOffset = ctts[ci].Offset
			cttsLeft--
		}

		if st.Stss != nil {
			s.IsSync = yi < len(st.Stss.Entries) && st.Stss.Entries[yi] == uint32(i+1)
			if s.IsSync {
				yi++
			}
		}
		samples[i] = s

		dts += int64(s.Duration)
		sttsLeft--

		inChunk++
		offInChunk += int64(size)
		if inChunk >= stsc[si].SamplesPerChunk {
			inChunk = 0
			offInChunk = 0
			chunk++
			if si+1 < len(stsc) && uint32(chunk) >= stsc[si+1].FirstChunk {
				si++
			}
		}
	}
	return samples, nil
}

func checkStsc(stsc []mp4.StscEntry) error {
	if stsc[0].FirstChunk != 1 {
		return fmt.Errorf("%w: first stsc entry starts at chunk %d", ErrCorruptData, stsc[0].FirstChunk)
	}
	for i, e := range stsc {
		if e.SamplesPerChunk == 0 {
			return fmt.Errorf("%w: stsc entry %d has no samples", ErrCorruptData, i)
		}
		if i > 0 && e.FirstChunk <= stsc[i-1].FirstChunk {
			return fmt.Errorf("%w: stsc entry %d does not advance", ErrCorruptData, i)
		}
	}
	return nil
}

// TrackSampleStats holds aggregated stats for samples belonging to one track.
type TrackSampleStats struct {
	TrackID     uint32
	TimeScale   uint32
	Duration    uint64 // sum of sample durations
	EarliestPTS int64
	SampleCount int
}

// CollectTrackSampleStats aggregates samples per track into dst, reusing its
// storage. Tracks appear in the order of their first sample; samples whose
// track is not in tracks are ignored.
func CollectTrackSampleStats(dst []TrackSampleStats, tracks []*Track, samples []Sample) []TrackSampleStats {
	dst = dst[:0]
	index := make(map[uint32]int, len(tracks))
	for _, s := range samples {
		i, ok := index[s.TrackID]
		if !ok {
			t := FindTrack(tracks, s.TrackID)
			if t == nil {
				continue
			}
			i = len(dst)
			index[s.TrackID] = i
			dst = append(dst, TrackSampleStats{TrackID: t.ID, TimeScale: t.TimeScale, EarliestPTS: s.PTS()})
		}
		st := &dst[i]
		st.SampleCount++
		st.Duration += uint64(s.Duration)
		st.EarliestPTS = min(st.EarliestPTS, s.PTS())
	}
	return dst
}
