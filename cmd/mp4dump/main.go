// Command mp4dump decodes an MP4 file and prints its box tree, the decoded
// codec configuration, or a per-track summary.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	mp4 "github.com/tetsuo/mp4inspect"
	"github.com/tetsuo/mp4inspect/track"
)

// Format specifies the output format.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatTracks
)

func parseFormat(s string) (Format, bool) {
	switch strings.ToLower(s) {
	case "text":
		return FormatText, true
	case "json":
		return FormatJSON, true
	case "tracks":
		return FormatTracks, true
	}
	return 0, false
}

const exitUsage = 64

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mp4dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	formatFlag := fs.String("format", "text", "output format: text, json, tracks")
	verbose := fs.Bool("v", false, "log each record to stderr")
	maxDepth := fs.Int("max-depth", 16, "maximum container nesting")
	maxPayload := fs.Int64("max-payload", 64<<20, "maximum bytes loaded for one leaf record")
	maxInput := fs.Int64("max-input", 1<<30, "maximum decompressed input size in bytes")
	trackID := fs.Uint("track", 0, "with -format tracks, show only this track")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: mp4dump [-format text|json|tracks] [-track ID] [-v] [-max-depth N] [-max-payload BYTES] [-max-input BYTES] <file>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	format, ok := parseFormat(*formatFlag)
	if !ok {
		fmt.Fprintf(stderr, "unknown format: %s\n", *formatFlag)
		return exitUsage
	}

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	out := bufio.NewWriter(stdout)
	err := dump(out, fs.Arg(0), format, *maxInput, uint32(*trackID),
		mp4.WithLogger(log.WithField("file", fs.Arg(0))),
		mp4.WithLimits(mp4.Limits{MaxDepth: *maxDepth, MaxPayload: *maxPayload}))
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return int(mp4.Classify(err))
	}
	return 0
}

func dump(w io.Writer, path string, format Format, maxInput int64, trackID uint32, opts ...mp4.Option) error {
	in, err := openInput(path, maxInput)
	if err != nil {
		return err
	}
	defer in.close()

	if format == FormatText {
		opts = append(opts, mp4.WithTrace(w))
	}
	f, err := mp4.Parse(context.Background(), in.r, in.size, opts...)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	case FormatTracks:
		return printTracks(w, f, trackID)
	}
	return nil
}

// printTracks writes one summary line per track. A nonzero only selects a
// single track.
func printTracks(w io.Writer, f *mp4.File, only uint32) error {
	tracks, err := track.FromFile(f)
	if err != nil {
		return err
	}
	if only != 0 {
		t := track.FindTrack(tracks, only)
		if t == nil {
			return fmt.Errorf("%w: no track %d", track.ErrInvalidTrack, only)
		}
		tracks = []*track.Track{t}
	}

	var samples []track.Sample
	for _, t := range tracks {
		s, err := t.Samples()
		if err != nil {
			return err
		}
		samples = append(samples, s...)
	}
	stats := track.CollectTrackSampleStats(nil, tracks, samples)

	for _, t := range tracks {
		var st track.TrackSampleStats
		for _, s := range stats {
			if s.TrackID == t.ID {
				st = s
				break
			}
		}
		fmt.Fprintf(w, "track %d: %s %s timescale=%d duration=%d samples=%d", t.ID, t.Kind, t.Codec(), t.TimeScale, st.Duration, st.SampleCount)
		if st.SampleCount > 0 {
			fmt.Fprintf(w, " start=%d", st.EarliestPTS)
		}
		switch t.Kind {
		case track.TrackVideo:
			fmt.Fprintf(w, " %dx%d", t.Width, t.Height)
		case track.TrackAudio:
			fmt.Fprintf(w, " ch=%d rate=%d", t.ChannelCount, t.SampleRate)
		}
		fmt.Fprintln(w)
	}
	return nil
}
