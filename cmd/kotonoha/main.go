// Kotonoha (ことのは) is a voice secretary for a hierarchical to-do list.
//
// Usage:
//
//	kotonoha [--plain] [--mock-tts] [--mock-openai] [--voice] [--tasks FILE]
package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/kotonoha/internal/assistant"
	"github.com/hammamikhairi/kotonoha/internal/config"
	"github.com/hammamikhairi/kotonoha/internal/conversation"
	"github.com/hammamikhairi/kotonoha/internal/display"
	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/gpt"
	"github.com/hammamikhairi/kotonoha/internal/logger"
	"github.com/hammamikhairi/kotonoha/internal/reminder"
	"github.com/hammamikhairi/kotonoha/internal/speech"
	"github.com/hammamikhairi/kotonoha/internal/storage"
	"github.com/hammamikhairi/kotonoha/internal/tasks"
)

// drainTimeout bounds how long queued speech may keep playing after exit.
const drainTimeout = 20 * time.Second

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"tasks":             "tasks.file",
	"memory":            "tasks.memory",
	"plain":             "ui.plain",
	"mock-tts":          "speech.mock",
	"mock-openai":       "gpt.mock",
	"verbose":           "log.verbose",
	"quiet":             "log.quiet",
	"log-file":          "log.file",
	"voice":             "whisper.enabled",
	"whisper-bin":       "whisper.bin",
	"whisper-model":     "whisper.model",
	"voicevox-url":      "voicevox.url",
	"speaker":           "voicevox.speaker",
	"scan-interval":     "reminder.scan_interval",
	"announce-interval": "chatter.announce_interval",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "kotonoha",
		Short:        "ことのは: a voice secretary for your to-do list",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.Options{
				File:     configFile,
				DotEnv:   []string{".env"},
				Flags:    cmd.Flags(),
				FlagKeys: flagKeys,
			})
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file (default kotonoha.yaml in . or $HOME/.kotonoha)")
	f.String("tasks", "", "task file (default tasks.json)")
	f.Bool("memory", false, "keep tasks in memory only")
	f.Bool("plain", false, "read lines from stdin instead of the terminal UI")
	f.Bool("mock-tts", false, "print speech instead of playing it")
	f.Bool("mock-openai", false, "classify with keyword rules instead of the OpenAI API")
	f.Bool("verbose", false, "enable verbose/debug logging")
	f.Bool("quiet", false, "disable all logging")
	f.String("log-file", "", `file to write logs to (use "stderr" to log to console)`)
	f.Bool("voice", false, "enable voice input via local Whisper STT")
	f.String("whisper-bin", "", "path to the whisper-cpp CLI binary")
	f.String("whisper-model", "", "path to the Whisper GGML model file")
	f.String("voicevox-url", "", "VOICEVOX engine URL")
	f.Int("speaker", 0, "VOICEVOX speaker id")
	f.Duration("scan-interval", 0, "how often due tasks are checked")
	f.Duration("announce-interval", 0, "how often the time is announced")
	return cmd
}

func run(cfg config.Config) error {
	log, closeLog := setupLogging(cfg.Log, os.Stderr)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Task store ──
	var store domain.TaskStore
	var fileStore *tasks.FileStore
	if cfg.Tasks.Memory {
		store = storage.NewMemoryStore(log.With("storage"))
		log.Info("tasks: in-memory store")
	} else {
		fs, err := tasks.NewFileStore(cfg.Tasks.File, log.With("tasks"))
		if err != nil {
			return err
		}
		store, fileStore = fs, fs
	}

	// ── Screen ──
	var ui *display.UI
	var printFn conversation.PrintFunc
	var echo io.Writer = os.Stdout
	color := term.IsTerminal(os.Stdout.Fd())
	var asst *assistant.Assistant
	var mouth *speech.Mouth

	if !cfg.UI.Plain {
		ui = display.NewUI(func() display.Status {
			q, due := asst.Status(context.Background())
			return display.Status{
				Question: q,
				DueCount: due,
				Pending:  pendingCount(store),
				Queued:   mouth.QueueLen(),
				Speaking: mouth.IsSpeaking(),
			}
		})
		printFn = ui.Printf
		echo = lineWriter(func(line string) { ui.PrintHint(line) })
	}
	screen := conversation.NewCLINotifier(log.With("screen"), printFn, color)

	// ── Speech ──
	mouth = speech.NewMouth(buildSink(ctx, cfg, echo, log), log.With("mouth"),
		speech.WithMonologueCooldown(cfg.Speech.MonologueCooldown),
		speech.WithSuppressAfterUser(cfg.Speech.SuppressAfterUser),
	)
	// The Mouth outlives the interrupt so queued speech can drain.
	mouthCtx, cancelMouth := context.WithCancel(context.Background())
	defer cancelMouth()
	mouth.Start(mouthCtx)
	speaker := speech.NewSpeakingNotifier(screen, mouth, log)

	// ── Classifier ──
	var classifier domain.Classifier
	if cfg.GPT.Mock {
		classifier = gpt.NewMockAgent()
		log.Info("gpt: mock classifier")
	} else {
		client := gpt.NewClient(cfg.GPT.APIKey, log.With("gpt"),
			gpt.WithEndpoint(cfg.GPT.Endpoint),
			gpt.WithModel(cfg.GPT.Model),
			gpt.WithRequestsPerMinute(cfg.GPT.RequestsPerMinute),
			gpt.WithHTTPTimeout(cfg.GPT.Timeout),
		)
		classifier = gpt.NewAgent(client, log.With("gpt"))
		log.Info("gpt: using %s at %s", cfg.GPT.Model, cfg.GPT.Endpoint)
	}

	// ── Reminders + dispatch ──
	rlog := log.With("reminder")
	asst = assistant.New(store, classifier, speaker,
		reminder.NewScanner(store, speaker, rlog,
			reminder.WithLookaheadDays(cfg.Reminder.LookaheadDays),
			reminder.WithNotifyCooldown(cfg.Reminder.NotifyCooldown),
		),
		reminder.NewConfirmation(store, speaker, rlog,
			reminder.WithAnswerTimeout(cfg.Reminder.AnswerTimeout),
		),
		reminder.NewChatter(speaker, rlog),
		log.With("assistant"),
		assistant.WithScanInterval(cfg.Reminder.ScanInterval),
		assistant.WithAnnounceInterval(cfg.Chatter.AnnounceInterval),
		assistant.WithPersona(gpt.SystemPrompt, gpt.FirstGreeting),
		assistant.WithNotifier(screen),
	)

	// ── Voice input ──
	var ear *speech.Ear
	if cfg.Whisper.Enabled {
		if _, err := os.Stat(cfg.Whisper.Model); err != nil {
			return fmt.Errorf("whisper model not found at %s: %w", cfg.Whisper.Model, err)
		}
		tempDir := filepath.Join(".kotonoha", "stt")
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", tempDir, err)
		}
		ear = speech.NewEar(cfg.Whisper.Bin, cfg.Whisper.Model, mouth, log.With("ear"),
			speech.WithTempDir(tempDir),
		)
	}

	// ── Banner ──
	fmt.Println(display.RenderBanner())
	if ear != nil {
		fmt.Println(display.BannerStyle.Render("  Voice mode ON: say 「ことのは」 to talk, or type."))
	}
	fmt.Println(display.BannerStyle.Render("  Type 'help' for commands, 'exit' to quit."))
	fmt.Println()

	// ── Run ──
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)
	if fileStore != nil {
		g.Go(func() error { return fileStore.Watch(gctx) })
	}

	var voice chan string
	if ear != nil {
		voice = make(chan string)
		g.Go(func() error {
			ear.Run(gctx)
			return nil
		})
		g.Go(func() error {
			return forward(gctx, ear.C(), voice, func(s string) {
				if ui != nil {
					ui.PrintVoice(s)
				} else {
					fmt.Println("[voice] " + s)
				}
			})
		})
	}

	// Typed input is the primary source: EOF on stdin closes lines, and Run
	// returns after the line in flight is handled.
	var typed <-chan string
	if ui != nil {
		typed = ui.InputChan()
	} else {
		typed = conversation.ReadLines(gctx, os.Stdin)
	}
	lines := conversation.MergeLines(gctx, typed, voice)

	g.Go(func() error {
		defer cancelRun()
		if ui != nil {
			ui.WaitReady()
			defer ui.Quit()
		}
		asst.Greet(gctx)
		return asst.Run(gctx, lines)
	})

	if ui != nil {
		if err := ui.Run(); err != nil {
			log.Error("display: %v", err)
		}
		// Ctrl-C inside the UI ends everything.
		cancelRun()
	}

	err := g.Wait()

	// Let queued speech finish, within reason.
	mouth.Close()
	select {
	case <-mouth.Done():
	case <-time.After(drainTimeout):
		log.Warn("speech did not drain within %s", drainTimeout)
		cancelMouth()
		mouth.Wait()
	}
	spoken, dropped := mouth.Stats()
	log.Info("shutdown complete (spoken=%d, dropped=%d)", spoken, dropped)
	return err
}

// ── Helpers ──────────────────────────────────────────────────────

// setupLogging directs logs to a file by default so the REPL stays clean.
// Problems opening the file are reported on warn.
func setupLogging(cfg config.LogConfig, warn io.Writer) (*logger.Logger, func()) {
	level := logger.LevelNormal
	if cfg.Verbose {
		level = logger.LevelVerbose
	}
	if cfg.Quiet {
		level = logger.LevelOff
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.File != "" && cfg.File != "stderr" {
		if dir := filepath.Dir(cfg.File); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fmt.Fprintf(warn, "warning: could not create log directory %s: %v\n", dir, err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(warn, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.File, err)
		} else {
			out = f
			closeFn = func() { f.Close() }
		}
	}

	// Third-party libraries such as the whisper transcriber use the
	// standard logger.
	stdlog.SetOutput(out)
	stdlog.SetFlags(stdlog.Ltime)

	return logger.New(level, out), closeFn
}

// buildSink picks the audio backend. VOICEVOX failures fall back to the
// mock sink: speech is best effort.
func buildSink(ctx context.Context, cfg config.Config, echo io.Writer, log *logger.Logger) domain.AudioSink {
	if cfg.Speech.Mock {
		log.Info("speech: mock sink")
		return speech.NewMockSink(echo)
	}

	player, err := speech.NewPlayer(log.With("player"))
	if err != nil {
		log.Error("speech: audio player init failed, falling back to mock: %v", err)
		return speech.NewMockSink(nil)
	}

	client := speech.NewVoicevoxClient(cfg.Voicevox.URL, log.With("voicevox"),
		speech.WithSpeaker(cfg.Voicevox.Speaker),
	)
	cache := speech.NewAudioCache(client.Voice(), cfg.Voicevox.CacheDir, true, cfg.Voicevox.CacheEntries, log.With("cache"))
	sink := speech.NewVoicevoxSink(client, player, log.With("sink"), speech.WithCache(cache))
	sink.Prefetch(ctx, speech.CommonLines()...)
	log.Info("speech: VOICEVOX at %s (speaker %d)", cfg.Voicevox.URL, cfg.Voicevox.Speaker)
	return sink
}

// forward copies lines from src to dst until ctx ends, calling show on
// each line first when set.
func forward(ctx context.Context, src <-chan string, dst chan<- string, show func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-src:
			if !ok {
				return nil
			}
			if show != nil {
				show(s)
			}
			select {
			case dst <- s:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func pendingCount(store domain.TaskStore) int {
	list, err := store.List(context.Background())
	if err != nil {
		return 0
	}
	n := 0
	for _, t := range list {
		if !t.Done {
			n++
		}
	}
	return n
}

// lineWriter adapts a line printer to io.Writer.
type lineWriter func(string)

func (w lineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		w(line)
	}
	return len(p), nil
}
