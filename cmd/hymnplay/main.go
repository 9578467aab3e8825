// Command hymnplay plays hymn MIDI files on an organ console or keyboard,
// with the introduction, verse and ritardando handling a service needs.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	hymnplay "github.com/organpi/hymnplay-go"
	"github.com/organpi/hymnplay-go/internal/audio"
	"github.com/organpi/hymnplay-go/internal/device"
	"github.com/organpi/hymnplay-go/internal/effects"
	"github.com/organpi/hymnplay-go/internal/timing"
)

const version = "1.3.0"

const defaultHymnDir = "/home/pi/Music/midihymns"

// Prelude speed handling: the argument is a two-digit percentage-of-ten, so
// -prelude=9 plays at 90%. Out-of-range values fall back to full speed.
const (
	defaultPreludeSpeed  = 0.90
	preludeMinSpeed      = 0.5
	preludeMaxSpeed      = 2.0
	preludeSpeedDivisor  = 10.0
	defaultSoundFontPath = "/usr/share/sounds/sf2/FluidR3_GM.sf2"
)

// preludeFlag accepts both a bare -prelude and -prelude=<speed>.
type preludeFlag struct {
	set   bool
	speed float64
}

func (p *preludeFlag) String() string { return "" }

func (p *preludeFlag) IsBoolFlag() bool { return true }

func (p *preludeFlag) Set(s string) error {
	p.set = true
	if s == "" || s == "true" {
		p.speed = defaultPreludeSpeed
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.speed = 1.0
		return nil
	}
	speed := n / preludeSpeedDivisor
	if speed < preludeMinSpeed || speed > preludeMaxSpeed {
		speed = 1.0
	}
	p.speed = speed
	return nil
}

func initLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}

func main() {
	var prelude preludeFlag
	flag.Var(&prelude, "prelude", "prelude/postlude: two verses, no introduction, optional =<speed> where 9 means 90%")
	var (
		tempo       = flag.Int("tempo", 0, "force tempo to the given beats per minute")
		versesIn    = flag.Int("n", 0, "play the introduction followed by this many verses")
		versesNoIn  = flag.Int("x", 0, "play this many verses without introduction")
		gotoArg     = flag.String("goto", "", "start at the given marker or measure (not yet implemented)")
		staging     = flag.Bool("staging", false, "play the file from the staging directory")
		stops       = flag.String("stops", "", "YAML file with device stop definitions")
		title       = flag.String("T", "", "title to display instead of the one in the file")
		warnings    = flag.Bool("warnings", false, "display playback warnings")
		verbose     = flag.Bool("verbose", false, "verbose output")
		showVersion = flag.Bool("version", false, "print the version and exit")
		hymnDir     = flag.String("dir", defaultHymnDir, "hymn library directory")
		portName    = flag.String("port", "", "MIDI output port name (default: configured port index)")
		audioMode   = flag.Bool("audio", false, "render through a SoundFont synthesizer instead of a MIDI port")
		reverbOn    = flag.Bool("reverb", false, "add room reverb to -audio output")
		soundFont   = flag.String("soundfont", defaultSoundFontPath, "SoundFont file for -audio and -wav")
		sampleRate  = flag.Int("sample-rate", 44100, "sample rate for -audio and -wav")
		wavOut      = flag.String("wav", "", "render one pass to a WAV file instead of playing")
	)
	flag.Parse()

	initLogger(*verbose)

	if *showVersion {
		fmt.Println("Organ Pi play MIDI file command")
		fmt.Println("===============================")
		fmt.Printf("  Version %s\n\n", version)
		return
	}
	if *gotoArg != "" {
		fmt.Println("Goto option not yet implemented. Starting at the beginning.")
	}
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "No filename provided. You must pass a file name to play.")
		os.Exit(1)
	}
	path := resolveHymnPath(*hymnDir, *staging, flag.Arg(0))

	var opts []hymnplay.Option
	if prelude.set {
		opts = append(opts, hymnplay.WithPrelude(prelude.speed))
	}
	if *versesIn > 0 {
		opts = append(opts, hymnplay.WithVerses(*versesIn), hymnplay.WithIntro(true))
	}
	if *versesNoIn > 0 {
		opts = append(opts, hymnplay.WithVerses(*versesNoIn), hymnplay.WithIntro(false))
	}
	if *tempo > 0 {
		opts = append(opts, hymnplay.WithTempoBPM(float64(*tempo)))
	}
	opts = append(opts, hymnplay.WithWarnings(*warnings || *verbose))

	if *wavOut != "" {
		renderToFile(path, *wavOut, *soundFont, *sampleRate, opts)
		return
	}

	var (
		out         hymnplay.Output
		port        drivers.Out
		audioPlayer *audio.Player
	)
	if *audioMode {
		synth, err := audio.NewSynth(*sampleRate, *soundFont)
		if err != nil {
			slog.Error("audio synth init failed", "err", err)
			os.Exit(1)
		}
		var source audio.SampleSource = synth
		if *reverbOn {
			source = &reverbSource{synth: synth, rev: effects.NewChapel(*sampleRate)}
		}
		player, err := audio.NewPlayer(*sampleRate, source)
		if err != nil {
			slog.Error("audio output init failed", "err", err)
			os.Exit(1)
		}
		player.Play()
		audioPlayer = player
		out = synth
	} else {
		drv, err := rtmididrv.New()
		if err != nil {
			slog.Error("MIDI driver init failed", "err", err)
			os.Exit(1)
		}
		defer drv.Close()

		reg := device.NewRegistry()
		if err := reg.LoadConfig(*stops); err != nil {
			slog.Error("device config failed", "err", err)
			os.Exit(1)
		}

		port, err = openOutput(drv, reg.Connection(), *portName)
		if err != nil {
			slog.Error("MIDI output unavailable", "err", err)
			os.Exit(1)
		}
		defer port.Close()

		if prof, ok := reg.Match(port.String()); ok {
			slog.Debug("configuring device", "profile", prof.Name, "port", port.String())
			if err := prof.Configure(port); err != nil {
				slog.Error("device registration failed", "profile", prof.Name, "err", err)
				os.Exit(1)
			}
		}
		out = port
	}

	pl, err := hymnplay.Load(path, out, opts...)
	if err != nil {
		slog.Error("load failed", "file", path, "err", err)
		os.Exit(1)
	}
	defer pl.Close()

	meta := pl.Meta()
	name := meta.Title
	if *title != "" {
		name = *title
	}
	bpm := int(math.Round(meta.BPM * pl.BaseSpeed()))
	fmt.Printf("Playing: %q in %s - %s at %d bpm\n",
		name, meta.KeyName, formatPlural(pl.Verses(), "verse", "verses"), bpm)

	sw := timing.New()
	sw.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		pl.Interrupt()
		if port != nil {
			_ = device.EmergencySilence(port)
		}
		sw.Stop()
		fmt.Printf("\nElapsed time %s\n\n", timing.FormatMinSec(sw.Elapsed()))
		code := 2
		if n, ok := s.(syscall.Signal); ok {
			code = int(n)
		}
		os.Exit(code)
	}()

	events := pl.Watch()
	go func() {
		for ev := range events {
			switch ev.Kind {
			case hymnplay.EventIntroStarted:
				fmt.Println(" Playing introduction")
			case hymnplay.EventVerseStarted:
				if ev.Last {
					fmt.Printf(" Playing verse %d, last verse\n", ev.Verse)
				} else {
					fmt.Printf(" Playing verse %d\n", ev.Verse)
				}
			case hymnplay.EventRitardando:
				fmt.Println("  Ritardando")
			case hymnplay.EventStuckNote:
				fmt.Println("   Warning: Final intro marker not past last NoteOff event")
			case hymnplay.EventWarning:
				if *warnings || *verbose {
					fmt.Println("Warning: " + ev.Text)
				}
			case hymnplay.EventDaCapo:
				fmt.Println("D.C. al Fine")
			case hymnplay.EventFine:
				slog.Debug("fine marker reached")
			}
		}
	}()

	if err := pl.Perform(); err != nil {
		slog.Error("performance failed", "err", err)
		os.Exit(1)
	}
	sw.Stop()
	fmt.Printf("Fine - elapsed time %s\n\n", timing.FormatMinSec(sw.Elapsed()))

	if audioPlayer != nil {
		// Let releases ring out before tearing the stream down.
		time.Sleep(time.Second)
		_ = audioPlayer.Stop()
	}
}

// renderToFile bounces one pass of the hymn to a float32 WAV file.
func renderToFile(path, wavPath, soundFont string, sampleRate int, opts []hymnplay.Option) {
	sc, err := hymnplay.LoadScore(path, opts...)
	if err != nil {
		slog.Error("load failed", "file", path, "err", err)
		os.Exit(1)
	}
	wav, err := hymnplay.RenderWAV(sc, soundFont, sampleRate, 2.0)
	if err != nil {
		slog.Error("render failed", "err", err)
		os.Exit(1)
	}
	if err := os.WriteFile(wavPath, wav, 0o644); err != nil {
		slog.Error("write failed", "file", wavPath, "err", err)
		os.Exit(1)
	}
	fmt.Printf("Rendered %q to %s\n", sc.Meta.Title, wavPath)
}

// resolveHymnPath normalizes the hymn name and anchors it in the library
// directory. Absolute paths are used as given.
func resolveHymnPath(dir string, staging bool, name string) string {
	if !strings.HasSuffix(name, ".mid") {
		name += ".mid"
	}
	if filepath.IsAbs(name) {
		return name
	}
	if staging {
		dir = filepath.Join(dir, "staging")
	}
	return filepath.Join(dir, name)
}

// openOutput waits for the console to enumerate its MIDI ports, then opens
// the requested one. A port name given on the command line wins over the
// configured port index.
func openOutput(drv *rtmididrv.Driver, conn device.Connection, name string) (drivers.Out, error) {
	var outs []drivers.Out
	for i := 0; ; i++ {
		var err error
		outs, err = drv.Outs()
		if err != nil {
			return nil, err
		}
		if len(outs) >= conn.MinPortCount {
			break
		}
		if i >= conn.TimeoutIterations {
			return nil, fmt.Errorf("only %d MIDI outputs after %d polls, want %d", len(outs), i, conn.MinPortCount)
		}
		slog.Debug("waiting for MIDI ports", "have", len(outs), "want", conn.MinPortCount)
		time.Sleep(time.Duration(conn.PollSleepSeconds) * time.Second)
	}

	if name != "" {
		for _, o := range outs {
			if strings.HasPrefix(o.String(), name) {
				if err := o.Open(); err != nil {
					return nil, err
				}
				return o, nil
			}
		}
		return nil, fmt.Errorf("MIDI output %q not found", name)
	}

	idx := conn.OutputPortIndex
	if idx < 0 || idx >= len(outs) {
		idx = len(outs) - 1
	}
	o := outs[idx]
	if err := o.Open(); err != nil {
		return nil, err
	}
	return o, nil
}

// reverbSource runs the synthesizer through a room reverb before the stream
// reader picks the samples up.
type reverbSource struct {
	synth *audio.Synth
	rev   *effects.Reverb
}

func (r *reverbSource) Process(left, right []float32) {
	r.synth.Process(left, right)
	r.rev.ProcessBlock(left, right)
}

func formatPlural(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
