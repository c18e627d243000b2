// Package main provides the CLI entry point for timelapse.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/user/timelapse/pkg/adapters/camerasource"
	"github.com/user/timelapse/pkg/adapters/chromesource"
	"github.com/user/timelapse/pkg/adapters/filesink"
	"github.com/user/timelapse/pkg/adapters/h264encoder"
	"github.com/user/timelapse/pkg/adapters/logger"
	"github.com/user/timelapse/pkg/adapters/mp4probe"
	"github.com/user/timelapse/pkg/adapters/mp4sink"
	"github.com/user/timelapse/pkg/adapters/nullsink"
	"github.com/user/timelapse/pkg/adapters/osfilesystem"
	"github.com/user/timelapse/pkg/adapters/patternsource"
	"github.com/user/timelapse/pkg/adapters/smartencoder"
	"github.com/user/timelapse/pkg/config"
	"github.com/user/timelapse/pkg/ports"
	"github.com/user/timelapse/pkg/recorder"
	"github.com/user/timelapse/pkg/summarizer"
)

var version = "dev"

func main() {
	if err := newApp(os.Stdin).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. stdin feeds interactive start/stop toggles.
func newApp(stdin io.Reader) *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, l10n.F("timelapse version %s", version))
	}

	return &cli.App{
		Name:    "timelapse",
		Usage:   l10n.T("Record time-lapse videos from a camera, a web page or a test pattern."),
		Version: version,
		Commands: []*cli.Command{
			recordCommand(stdin),
			{
				Name:   "encoders",
				Usage:  l10n.T("List the H.264 encoders ffmpeg provides."),
				Flags:  []cli.Flag{ffmpegPathFlag(), &cli.BoolFlag{Name: "select", Usage: l10n.T("Probe the encoders and show which one auto selects")}},
				Action: runEncoders,
			},
			{
				Name:      "inspect",
				Usage:     l10n.T("Show the video track of a recorded MP4 file."),
				ArgsUsage: "FILE",
				Action:    runInspect,
			},
			{
				Name:  "version",
				Usage: l10n.T("Show version information."),
				Action: func(c *cli.Context) error {
					cli.VersionPrinter(c)
					return nil
				},
			},
		},
	}
}

func ffmpegPathFlag() cli.Flag {
	return &cli.StringFlag{Name: "ffmpeg-path", Category: l10n.T("Encoder"), Usage: l10n.T("Path to the ffmpeg executable (falls back to FFMPEG_PATH, then PATH)")}
}

func recordCommand(stdin io.Reader) *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: l10n.T("Record a time-lapse video."),
		Flags: []cli.Flag{
			// Output
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Category: l10n.T("Output"), Usage: l10n.T("YAML configuration file")},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Category: l10n.T("Output"), Usage: l10n.T("Output MP4 path ({n} = session number, {time} = start time)")},
			&cli.StringFlag{Name: "summary", Category: l10n.T("Output"), Usage: l10n.T("Write a summary of each session to this path (Markdown, or YAML for .yaml)")},

			// Session control
			&cli.DurationFlag{Name: "duration", Aliases: []string{"t"}, Category: l10n.T("Session"), Usage: l10n.T("Stop recording after this wall-clock duration (0 = until interrupted)")},
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Category: l10n.T("Session"), Usage: l10n.T("Toggle recording on each line read from stdin")},

			// Source
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Category: l10n.T("Source"), Usage: l10n.T("Frame source (pattern, camera or chrome)")},
			&cli.StringFlag{Name: "url", Category: l10n.T("Source"), Usage: l10n.T("Page to capture with the chrome source")},
			&cli.StringFlag{Name: "input", Category: l10n.T("Source"), Usage: l10n.T("Camera device for the camera source")},
			&cli.StringFlag{Name: "chrome-path", Category: l10n.T("Source"), Usage: l10n.T("Path to Chrome executable")},
			&cli.BoolFlag{Name: "no-headless", Category: l10n.T("Source"), Usage: l10n.T("Run browser in non-headless mode")},

			// Video
			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Category: l10n.T("Video and Quality"), Usage: l10n.T("Video width")},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Category: l10n.T("Video and Quality"), Usage: l10n.T("Video height")},
			&cli.IntFlag{Name: "fps", Category: l10n.T("Video and Quality"), Usage: l10n.T("Playback frame rate")},
			&cli.StringFlag{Name: "quality", Aliases: []string{"q"}, Category: l10n.T("Video and Quality"), Usage: l10n.T("Bitrate preset (low, medium or high)")},
			&cli.IntFlag{Name: "bitrate", Category: l10n.T("Video and Quality"), Usage: l10n.T("Bitrate in bits per second (overrides quality)")},
			&cli.IntFlag{Name: "keyframe-interval", Category: l10n.T("Video and Quality"), Usage: l10n.T("Seconds between keyframes")},
			&cli.DurationFlag{Name: "sample-interval", Category: l10n.T("Video and Quality"), Usage: l10n.T("Wall-clock time between sampled frames")},
			&cli.StringFlag{Name: "chroma-merge", Category: l10n.T("Video and Quality"), Usage: l10n.T("Chroma interleave mode (literal or full)")},

			// Encoder
			&cli.StringFlag{Name: "codec", Category: l10n.T("Encoder"), Usage: l10n.T("ffmpeg encoder name, or auto to prefer hardware")},
			&cli.BoolFlag{Name: "no-fallback", Category: l10n.T("Encoder"), Usage: l10n.T("Fail instead of falling back to libx264")},
			ffmpegPathFlag(),

			// Debug
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Category: l10n.T("Debug"), Usage: l10n.T("Enable debug output")},
			&cli.StringFlag{Name: "debug-dir", Category: l10n.T("Debug"), Usage: l10n.T("Directory for debug output")},

			// Logging
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info", Category: l10n.T("Logging"), Usage: l10n.T("Log level (debug, info, warn, error)")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Category: l10n.T("Logging"), Usage: l10n.T("Suppress all log output")},
		},
		Action: func(c *cli.Context) error {
			return runRecord(c, stdin)
		},
	}
}

// buildConfig loads the config file, if any, and applies flag overrides.
func buildConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet("output") {
		cfg.OutputPath = c.String("output")
	}
	if c.IsSet("source") {
		cfg.Source.Kind = c.String("source")
	}
	if c.IsSet("url") {
		cfg.Source.URL = c.String("url")
		if !c.IsSet("source") {
			cfg.Source.Kind = config.SourceChrome
		}
	}
	if c.IsSet("input") {
		cfg.Source.Input = c.String("input")
	}
	if c.IsSet("chrome-path") {
		cfg.Source.ChromePath = c.String("chrome-path")
	}
	if c.Bool("no-headless") {
		cfg.Source.Headless = false
	}
	if c.IsSet("width") {
		cfg.Video.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Video.Height = c.Int("height")
	}
	if c.IsSet("fps") {
		cfg.Video.FrameRate = c.Int("fps")
	}
	if c.IsSet("quality") {
		cfg.Video.Quality = c.String("quality")
	}
	if c.IsSet("bitrate") {
		cfg.Video.Bitrate = c.Int("bitrate")
	}
	if c.IsSet("keyframe-interval") {
		cfg.Video.KeyframeInterval = c.Int("keyframe-interval")
	}
	if c.IsSet("sample-interval") {
		cfg.Video.SampleIntervalMs = int(c.Duration("sample-interval") / time.Millisecond)
	}
	if c.IsSet("chroma-merge") {
		cfg.Video.ChromaMerge = c.String("chroma-merge")
	}
	if c.IsSet("codec") {
		cfg.Encoder.Codec = c.String("codec")
	}
	if c.IsSet("ffmpeg-path") {
		cfg.Encoder.FFmpegPath = c.String("ffmpeg-path")
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	if c.IsSet("debug-dir") {
		cfg.DebugDir = c.String("debug-dir")
	}

	return cfg, cfg.Validate()
}

func newLogger(c *cli.Context) ports.Logger {
	if c.Bool("quiet") {
		return logger.NewNoop()
	}
	return logger.NewConsole(ports.ParseLogLevel(c.String("log-level")))
}

func newSource(cfg config.Config, log ports.Logger) ports.FrameSource {
	switch cfg.Source.Kind {
	case config.SourceCamera:
		return camerasource.New(cfg.CameraOptions(), log)
	case config.SourceChrome:
		return chromesource.New(cfg.ChromeOptions(), log)
	default:
		return patternsource.New(cfg.PatternOptions())
	}
}

func runRecord(c *cli.Context, stdin io.Reader) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(c)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := osfilesystem.New()

	newEncoder, encInfo, err := smartencoder.New(cfg.Encoder.Codec, smartencoder.Options{
		FFmpegPath: cfg.Encoder.FFmpegPath,
		NoFallback: c.Bool("no-fallback"),
		Encoder:    cfg.EncoderOptions(),
		Logger:     log,
	})
	if err != nil {
		return err
	}
	log.Info(l10n.F("Using encoder %s (%s)", encInfo.Codec, l10n.T(string(encInfo.Backend))))

	var debug ports.DebugSink
	if cfg.Debug {
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			return fmt.Errorf("create debug directory: %w", err)
		}
		debug = filesink.New(cfg.DebugDir, fs, filesink.DefaultQuality)
	} else {
		debug = nullsink.New()
	}

	rec := recorder.New(cfg.ToRecorderConfig(), recorder.Dependencies{
		NewEncoder: newEncoder,
		NewSink:    func() ports.ContainerSink { return mp4sink.New(fs) },
		Debug:      debug,
	}, log)

	source := newSource(cfg, log)
	frames, err := source.Start(ctx)
	if err != nil {
		return fmt.Errorf("start %s source: %w", cfg.Source.Kind, err)
	}
	defer source.Close()

	summary := func() {
		path := c.String("summary")
		if path == "" {
			return
		}
		stats := rec.LastSession()
		path = strings.ReplaceAll(path, "{n}", fmt.Sprint(stats.Number))
		if err := writeSummary(path, stats, cfg, encInfo, fs, log); err != nil {
			log.Warn(l10n.F("Failed to write summary: %s", err))
			return
		}
		log.Info(l10n.F("Summary saved to %s", path))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := new(errgroup.Group)
	g.Go(func() error {
		defer cancel()
		if err := rec.Run(runCtx, frames); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		if c.Bool("interactive") {
			return controlInteractive(runCtx, rec, stdin, log, summary)
		}
		return controlTimed(runCtx, rec, c.Duration("duration"), summary)
	})
	err = g.Wait()

	if ctx.Err() != nil {
		log.Warn(l10n.T("Interrupted, shutting down..."))
	}
	return err
}

// controlTimed records one session until d elapses or ctx is done.
func controlTimed(ctx context.Context, rec *recorder.Recorder, d time.Duration, done func()) error {
	if err := rec.Start(); err != nil {
		return err
	}

	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	} else {
		<-ctx.Done()
	}

	if err := rec.Stop(); err != nil {
		return err
	}
	done()
	return nil
}

// controlInteractive toggles recording on every line from r. A running
// session is stopped when r ends or ctx is done.
func controlInteractive(ctx context.Context, rec *recorder.Recorder, r io.Reader, log ports.Logger, done func()) error {
	lines := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info(l10n.T("Press Enter to start or stop recording"))

	var errs []error
	for {
		select {
		case <-ctx.Done():
		case _, ok := <-lines:
			if ok {
				if !rec.Recording() {
					// Logged by the recorder; the next line retries.
					_ = rec.Start()
					continue
				}
				if err := rec.Stop(); err != nil {
					errs = append(errs, err)
					continue
				}
				done()
				continue
			}
		}

		if rec.Recording() {
			if err := rec.Stop(); err != nil {
				errs = append(errs, err)
			} else {
				done()
			}
		}
		return errors.Join(errs...)
	}
}

func writeSummary(path string, stats recorder.SessionStats, cfg config.Config, enc smartencoder.Info, fs ports.FileSystem, log ports.Logger) error {
	builder := summarizer.NewBuilder().
		WithSession(stats).
		WithSettings(summarizer.Settings{
			Source:           cfg.Source.Kind,
			Encoder:          enc.Codec,
			Backend:          string(enc.Backend),
			Width:            cfg.Video.Width,
			Height:           cfg.Video.Height,
			Bitrate:          cfg.BitrateOrPreset(),
			FrameRate:        cfg.Video.FrameRate,
			KeyframeInterval: cfg.Video.KeyframeInterval,
			SampleInterval:   time.Duration(cfg.Video.SampleIntervalMs) * time.Millisecond,
			ChromaMerge:      cfg.Video.ChromaMerge,
		})

	if info, err := mp4probe.ProbeFile(fs, stats.Path); err != nil {
		log.Warn(l10n.F("Failed to probe %s: %s", stats.Path, err))
	} else {
		builder.WithProbe(info)
	}

	formatter := summarizer.ForPath(path,
		summarizer.WithTranslator(l10n.T),
		summarizer.WithVersion(version),
	)
	return summarizer.NewWriter(formatter, fs).Write(path, builder.Build())
}

func runEncoders(c *cli.Context) error {
	opts := smartencoder.Options{FFmpegPath: c.String("ffmpeg-path")}
	if opts.FFmpegPath != "" {
		h264encoder.SetFFmpegPath(opts.FFmpegPath)
	}

	names, err := smartencoder.ListEncoders()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(c.App.Writer, name)
	}

	if c.Bool("select") {
		_, info, err := smartencoder.New(smartencoder.Auto, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, l10n.F("Selected: %s (%s)", info.Codec, l10n.T(string(info.Backend))))
	}
	return nil
}

func runInspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New(l10n.T("A single MP4 file argument is required"))
	}
	path := c.Args().First()

	info, err := mp4probe.ProbeFile(osfilesystem.New(), path)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintln(w, l10n.F("File: %s (%d bytes)", path, info.Size))
	fmt.Fprintln(w, l10n.F("Codec: %s %dx%d", info.Codec, info.Width, info.Height))
	fmt.Fprintln(w, l10n.F("Samples: %d (%d keyframes)", info.Samples, info.Keyframes))
	if info.Fragmented {
		fmt.Fprintln(w, l10n.F("Fragments: %d", info.Fragments))
	}
	fmt.Fprintln(w, l10n.F("Duration: %s (%.2f fps)", info.Duration.Round(time.Millisecond), info.FrameRate()))
	return nil
}
