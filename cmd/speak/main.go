// Command speak sends one prompt to a realtime deployment, prints the
// transcript as it streams in, and saves the spoken reply as a WAV file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skaldy/rtspeak/internal/config"
	"github.com/skaldy/rtspeak/internal/logging"
	"github.com/skaldy/rtspeak/internal/playback"
	"github.com/skaldy/rtspeak/internal/realtime"
	"github.com/skaldy/rtspeak/internal/wavio"
)

func main() {
	prompt := flag.String("prompt", "", "Prompt to send to the model")
	model := flag.String("model", "", "Configured model ID (optional when only one model is configured)")
	voice := flag.String("voice", "", "Voice override for the spoken reply")
	output := flag.String("output", "", "WAV output path (default audio_output_<timestamp>.wav)")
	play := flag.Bool("play", false, "Play audio through the default output device while streaming")
	timeout := flag.Duration("timeout", 0, "Overall deadline for the exchange (0 = none)")
	idleTimeout := flag.Duration("idle-timeout", realtime.DefaultIdleTimeout, "Max wait for the next stream event")
	configPath := flag.String("config", "", "Optional JSON settings file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config(cfg.Logging)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	logging.SetSessionID(logging.NewSessionID())

	if *prompt == "" {
		logging.Fatalf("-prompt is required")
	}

	modelCfg, err := cfg.Lookup(*model)
	if err != nil {
		logging.Fatalf("select model: %v", err)
	}
	if *voice != "" {
		modelCfg.Voice = *voice
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	opts := []realtime.Option{
		realtime.WithIdleTimeout(*idleTimeout),
		realtime.WithTranscriptHandler(func(fragment string) {
			fmt.Print(fragment)
		}),
	}

	if *play {
		player, err := playback.NewPlayer(wavio.SampleRate)
		if err != nil {
			logging.Fatalf("open playback device: %v", err)
		}
		defer player.Close()
		opts = append(opts, realtime.WithAudioHandler(func(fragment []byte) {
			if err := player.Write(fragment); err != nil {
				logging.Warnf("playback: %v", err)
			}
		}))
	}

	logging.Infof("sending prompt to %s (%s)", modelCfg.ID, modelCfg.Deployment)
	res, err := realtime.Run(ctx, modelCfg, realtime.Request{
		Prompt: *prompt,
		Voice:  modelCfg.Voice,
	}, opts...)
	fmt.Println()

	if err != nil {
		reportFailure(res, err)
		os.Exit(1)
	}

	path := *output
	if path == "" {
		path = fmt.Sprintf("audio_output_%s.wav", time.Now().Format("20060102_150405"))
	}
	if len(res.Audio) == 0 {
		logging.Warnf("response carried no audio, skipping %s", path)
		return
	}
	if err := wavio.WriteFile(path, res.Audio); err != nil {
		logging.Fatalf("save audio: %v", err)
	}
	logging.Infof("audio saved to %s (%d bytes of PCM)", path, len(res.Audio))
}

// reportFailure names the failure kind: cancellation, incomplete stream and
// remote failures each read differently. No output file is written on any
// failure path.
func reportFailure(res *realtime.Result, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		logging.Warnf("generation cancelled, partial transcript above was kept")
	case errors.Is(err, realtime.ErrIncomplete):
		logging.Errorf("stream ended before completion, partial transcript above was kept")
	case errors.Is(err, realtime.ErrStalled):
		logging.Errorf("stream stalled: %v", err)
	case errors.Is(err, realtime.ErrRemote):
		logging.Errorf("remote failure: %v", err)
	case errors.Is(err, config.ErrMissingField):
		logging.Errorf("configuration: %v", err)
	default:
		logging.Errorf("generation failed: %v", err)
	}
	if res != nil {
		logging.Infof("exchange ended with status %s", res.Status)
	}
}
