package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/taktell/taktell"
	"github.com/taktell/taktell/metronome"
	"github.com/taktell/taktell/oto"
	"github.com/taktell/taktell/version"
)

func main() {
	file := flag.StringP("file", "f", "", "Load the tempo map from a file (.yml/.yaml for the YAML form).")
	samplerate := flag.Int("samplerate", 48000, "Output samplerate in Hz.")
	multiplier := flag.Float64P("multiplier", "m", 1.0, "Global tempo multiplier.")
	preroll := flag.StringP("preroll", "p", "none", `Count-in: "none", "2beats" or a number of bars.`)
	startLabel := flag.StringP("start", "s", "", "Start playback at the entry with this label.")
	emphasis := flag.StringP("emphasis", "e", "normal", `Accent handling: "normal", "none" or "all".`)
	volume := flag.Float64P("volume", "v", 1.0, "Master volume.")
	volumeEmphasis := flag.Float64("volume-emphasis", 1.0, "Gain of the emphasis click.")
	volumeNormal := flag.Float64("volume-normal", 1.0, "Gain of the normal click.")
	transport := flag.Bool("transport", false, "Follow the audio backend's frame clock across seeks.")
	master := flag.Bool("transport-master", false, "Publish the musical position while playing.")
	debug := flag.BoolP("debug", "d", false, "Log the effective tempo map and engine state.")
	showVersion := flag.Bool("version", false, "Print version and exit.")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	var tempomap taktell.TempoMap
	var err error
	switch {
	case *file != "":
		tempomap, err = taktell.NewFromFile(*file)
	case flag.NArg() > 0:
		tempomap, err = taktell.NewFromCommandLine(strings.Join(flag.Args(), " "))
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logrus.Fatalf("could not load tempo map: %v", err)
	}
	for i := range tempomap.Entries {
		if d := tempomap.Entries[i].Denom; !taktell.UsualDenominators[d] {
			logrus.Warnf("entry %d has an unusual meter denominator %d", i+1, d)
		}
	}

	opts := metronome.DefaultOptions()
	opts.TempoMultiplier = *multiplier
	opts.StartLabel = *startLabel
	opts.VolumeEmphasis = *volumeEmphasis
	opts.VolumeNormal = *volumeNormal
	opts.TransportEnabled = *transport
	opts.TransportMaster = *master
	if opts.Preroll, err = parsePreroll(*preroll); err != nil {
		logrus.Fatal(err)
	}
	if opts.Emphasis, err = parseEmphasis(*emphasis); err != nil {
		logrus.Fatal(err)
	}

	ctx, err := oto.NewContext(*samplerate)
	if err != nil {
		logrus.Fatalf("could not open audio device: %v", err)
	}
	defer ctx.Close()
	ctx.SetVolume(float32(*volume))

	broker := metronome.NewBroker()
	m, err := metronome.New(ctx, tempomap, broker, opts)
	if err != nil {
		logrus.Fatalf("could not create metronome: %v", err)
	}
	emphasisClick, normalClick := taktell.DefaultClicks(*samplerate)
	m.SetSound(emphasisClick, normalClick)

	if *debug {
		logrus.Debugf("effective tempo map:\n%s", m.Position().TempoMap().Dump())
		logrus.Debug(spew.Sdump(opts))
	}

	m.Start()
	ctx.SetProcessCallback(m.Process)
	if err := ctx.Start(); err != nil {
		logrus.Fatalf("could not start audio: %v", err)
	}
	logrus.Info("playing, press ctrl-c to stop")

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case <-sigc:
			m.Stop()
			return
		case msg := <-broker.ToModel:
			if msg.HasTimebase {
				logrus.WithFields(logrus.Fields{
					"bar":   msg.Timebase.Bar,
					"beat":  msg.Timebase.Beat,
					"tempo": fmt.Sprintf("%.1f", msg.Timebase.BPM),
				}).Debug("transport")
			}
			if msg.End {
				// let the last click ring out before tearing the device down
				time.Sleep(200 * time.Millisecond)
				logrus.Info("end of tempo map")
				return
			}
		}
	}
}

func parsePreroll(s string) (int, error) {
	switch s {
	case "none":
		return metronome.PrerollNone, nil
	case "2beats":
		return metronome.Preroll2Beats, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid preroll %q: want \"none\", \"2beats\" or a bar count", s)
	}
	return n, nil
}

func parseEmphasis(s string) (metronome.EmphasisMode, error) {
	switch s {
	case "normal":
		return metronome.EmphasisNormal, nil
	case "none":
		return metronome.EmphasisNone, nil
	case "all":
		return metronome.EmphasisAll, nil
	}
	return 0, fmt.Errorf("invalid emphasis mode %q: want \"normal\", \"none\" or \"all\"", s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `usage: taktell [options] TEMPO
       taktell [options] "[label:] (bars|*) [beats/denom] tempo [pattern] [volume]"
       taktell [options] -f FILE

Plays a click track over a tempo map. A lone TEMPO plays forever in 4/4;
the full line grammar and the file format are identical. In a pattern, X
is an emphasized beat, x a normal beat and . a silent one.

Options:
%s`, flag.CommandLine.FlagUsages())
}
