package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"gbalink/multiboot"

	"github.com/spf13/cobra"
)

func probeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check whether a console is waiting for an image",
		Long: `Send sync words until the console answers or the handshake budget
runs out, without starting a transfer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			l, err := o.open()
			if err != nil {
				return err
			}
			defer l.Close()

			attempts, _, err := multiboot.Probe(ctx, l, o.cfg.Options()...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "console ready after %d sync attempt(s)\n", attempts)
			return nil
		},
	}
}
