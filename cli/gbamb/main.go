package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"gbalink/config"
	"gbalink/link"
	"gbalink/util"

	"github.com/spf13/cobra"
)

// include these link drivers:
import (
	_ "gbalink/link/mock"
	_ "gbalink/link/udpbridge"
	_ "gbalink/link/usbserial"
	_ "gbalink/link/wsbridge"
)

var (
	version = "dev"
	commit  = "none"
)

// options shared by every command; flags override the configuration file.
type options struct {
	cfg config.Configuration

	driver  string
	device  string
	voltage string
	timeout time.Duration
}

// init is called first before all other package inits so it is best to set up log here:
func init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)
}

func setupLogFile() {
	logPath := util.LogPath("gbamb")
	logger, err := util.NewPanicSafeLogger(logPath, os.Stderr)
	if err != nil {
		log.Printf("could not open log file '%s' for writing\n", logPath)
		return
	}
	log.SetOutput(logger)
	log.Printf("logging to '%s'\n", logPath)
}

func main() {
	defer func() {
		if err := recover(); err != nil {
			util.LogPanic(err)
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gbamb: %v\n", err)
		_ = util.FlushLogger()
		os.Exit(1)
	}
	_ = util.FlushLogger()
}

func rootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "gbamb",
		Short: "Send programs to a GBA over a link cable",
		Long: `gbamb boots a Game Boy Advance from a program image sent over the
link cable, using the console's built-in multiboot loader.

Settings are read from config.json in the user configuration directory,
then GBALINK_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if quiet, _ := cmd.Flags().GetBool("no-log-file"); !quiet {
				setupLogFile()
			}
			return o.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.driver, "driver", "d", "", "link driver (see 'gbamb drivers')")
	pf.StringVarP(&o.device, "port", "p", "", "device for the driver: serial port, bridge URL or mock faults")
	pf.StringVar(&o.voltage, "voltage", "", "link voltage: 3v3 (GBA) or 5v (GB/GBC)")
	pf.DurationVar(&o.timeout, "timeout", 0, "per-word reply timeout")
	pf.Bool("no-log-file", false, "log to stderr only")

	root.AddCommand(
		sendCmd(o),
		probeCmd(o),
		portsCmd(),
		driversCmd(),
		serveCmd(o),
		versionCmd(),
	)
	return root
}

func (o *options) load(cmd *cobra.Command) (err error) {
	o.cfg, err = config.Load()
	if err != nil {
		return
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		o.cfg.Link.Driver = o.driver
	}
	if flags.Changed("port") {
		o.cfg.Link.Device = o.device
	}
	if flags.Changed("voltage") {
		if o.cfg.Link.Voltage, err = link.ParseVoltage(o.voltage); err != nil {
			return
		}
	}
	if flags.Changed("timeout") {
		o.cfg.Transfer.Timeout = config.Duration(o.timeout)
	}
	return nil
}

func (o *options) open() (link.ByteLink, error) {
	l, err := link.Open(o.cfg.Link.Driver, o.cfg.Link.Device)
	if err != nil {
		return nil, err
	}
	log.Printf("gbamb: opened %s link '%s'\n", o.cfg.Link.Driver, o.cfg.Link.Device)
	return l, nil
}
