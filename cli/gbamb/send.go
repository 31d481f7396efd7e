package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"gbalink/link"
	"gbalink/multiboot"
	"gbalink/rom"
	"gbalink/util"

	"github.com/spf13/cobra"
)

func sendCmd(o *options) *cobra.Command {
	var (
		attempts  int
		stats     bool
		fixHeader bool
		wordAlign bool
	)

	cmd := &cobra.Command{
		Use:   "send <image>",
		Short: "Send a multiboot image to the console",
		Long: `Send a program image to a console waiting in its multiboot loader.

The image may be a local file, a .lz4 compressed file, or an S3 object
given as s3://bucket/key.

Examples:
  gbamb send demo.mb.gba
  gbamb send --driver wsbridge --port ws://pi.local:27640/link demo.mb.gba
  gbamb send --driver mock --port slow=2,split demo.mb.gba`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("attempts") {
				o.cfg.Transfer.Attempts = attempts
			}
			if wordAlign {
				o.cfg.Transfer.HardwareAlignment = false
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			image, err := loadImage(ctx, args[0], fixHeader)
			if err != nil {
				return err
			}

			l, err := o.open()
			if err != nil {
				return err
			}
			defer l.Close()

			res, err := send(ctx, cmd.OutOrStdout(), l, image, o)
			if res != nil && stats {
				printStats(cmd.OutOrStdout(), res.RoundTrips)
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&attempts, "attempts", "n", 0, "sessions to try before giving up (default from config)")
	cmd.Flags().BoolVar(&stats, "stats", false, "print a histogram of reply latencies")
	cmd.Flags().BoolVar(&fixHeader, "fix-header", false, "correct the header complement before sending")
	cmd.Flags().BoolVar(&wordAlign, "word-align", false, "pad to 4 bytes instead of the BIOS's 16 byte blocks")

	return cmd
}

func loadImage(ctx context.Context, src string, fix bool) ([]byte, error) {
	image, err := rom.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	if err = multiboot.ValidateImage(image); err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}

	if fix {
		if err = rom.FixHeader(image); err != nil {
			return nil, err
		}
	}

	r, err := rom.NewROM(image)
	if err != nil {
		return nil, err
	}
	log.Printf("gbamb: %s: %s, %d bytes\n", src, r, len(image))
	for _, p := range r.Problems() {
		log.Printf("gbamb: warning: %s (use --fix-header)\n", p)
	}
	return image, nil
}

// send runs sessions until one completes, the error is not retryable, or
// the configured attempts are used up.
func send(ctx context.Context, out io.Writer, l link.ByteLink, image []byte, o *options) (res *multiboot.Result, err error) {
	attempts := o.cfg.Transfer.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		bar := newProgress(out)
		events := &util.CommitLogger{Committer: func(p []byte) {
			_, _ = log.Writer().Write(p)
		}}

		opts := append(o.cfg.Options(),
			multiboot.WithProgressInterval(progressInterval),
			multiboot.WithEventSink(func(ev multiboot.Event) {
				events.Printf("%s gbamb: %s\n", ev.Time.UTC().Format(logTimeFormat), ev)
				bar.update(ev)
			}),
		)

		res, err = multiboot.Run(ctx, l, image, opts...)
		bar.done()
		events.Commit()

		if err == nil {
			fmt.Fprintf(out, "sent %d bytes in %s (checksum %04x)\n", res.BytesSent, res.Duration.Round(time.Millisecond), res.Checksum)
			return
		}

		var merr *multiboot.Error
		if !errors.As(err, &merr) || !merr.Retryable() || link.IsTerminal(err) {
			return
		}
		if attempt < attempts {
			fmt.Fprintf(out, "attempt %d of %d failed: %v; retrying\n", attempt, attempts, err)
		}
	}
	return
}
