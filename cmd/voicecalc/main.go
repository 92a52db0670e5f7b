// Command voicecalc drives one calculator session from transcripts read line
// by line, as if each line had been recognized from speech.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"voice-calculator/internal/config"
	"voice-calculator/internal/observability"
	"voice-calculator/internal/session"
	"voice-calculator/internal/speech"
	"voice-calculator/internal/voice"
)

func main() {
	configPath := flag.String("config", os.Getenv("CALC_CONFIG"), "path to a YAML config file")
	input := flag.String("input", "-", "transcript file, - for stdin")
	flag.Parse()

	if err := run(*configPath, *input); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, input string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := observability.InitLogger(cfg.Log.Level); err != nil {
		return err
	}
	defer observability.SyncLogger()

	var src io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("open transcripts: %w", err)
		}
		defer f.Close()
		src = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return newConsole(os.Stdout, cfg).Run(ctx, voice.NewLineRecognizer(src))
}

// console wires a listener to a single in-memory session and prints the
// display, feedback and speech.
type console struct {
	out        *syncWriter
	cfg        *config.Config
	dispatcher *voice.Dispatcher
}

func newConsole(w io.Writer, cfg *config.Config) *console {
	return &console{
		out:        &syncWriter{w: w},
		cfg:        cfg,
		dispatcher: voice.NewDispatcher(cfg.Voice.DispatcherOptions()...),
	}
}

// Run listens until the recognizer runs dry, the user denies the microphone
// or ctx ends.
func (c *console) Run(ctx context.Context, r voice.Recognizer) error {
	logger := observability.Logger

	announcer := speech.NewAnnouncer(printSynthesizer{out: c.out}, c.cfg.Speech, logger)
	defer announcer.Close()

	manager := session.NewManager(session.NewMemoryStore(0),
		session.WithAnnouncer(announcer),
		session.WithLogger(logger),
	)
	s, err := manager.Create(ctx)
	if err != nil {
		return err
	}

	handle := func(ctx context.Context, transcript string) {
		u, _, err := manager.Apply(ctx, s.ID, session.Voice(c.dispatcher, transcript, true))
		if err != nil {
			c.out.Printf("error: %v\n", err)
			return
		}
		c.printUpdate(u)
	}

	l := voice.NewListener(r, handle,
		voice.WithRestartDelay(c.cfg.Voice.RestartDelay),
		voice.WithFeedback(func(msg string) { c.out.Printf("# %s\n", msg) }),
		voice.WithLogger(logger),
	)

	err = l.Run(ctx)
	if errors.Is(err, voice.ErrExhausted) {
		return nil
	}
	return err
}

func (c *console) printUpdate(u session.Update) {
	if u.Expression != "" {
		c.out.Printf("%s | %s\n", u.Expression, u.Display)
		return
	}
	c.out.Printf("%s\n", u.Display)
}

// printSynthesizer speaks by printing.
type printSynthesizer struct {
	out *syncWriter
}

func (p printSynthesizer) Speak(_ context.Context, u speech.Utterance) error {
	p.out.Printf("> %s\n", u.Text)
	return nil
}
