package main

import (
	"fmt"
	"io"
	"log"
	"text/tabwriter"

	"gbalink/link"

	"github.com/spf13/cobra"
)

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List devices every link driver can reach",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listPorts(cmd.OutOrStdout())
			return nil
		},
	}
}

type port struct {
	Driver string `json:"driver"`
	Device string `json:"device"`
}

func detectPorts() (ports []port) {
	for _, nd := range link.Drivers() {
		devices, err := nd.Driver.Detect()
		if err != nil {
			log.Printf("gbamb: %s: detect: %v\n", nd.Name, err)
			continue
		}
		for _, d := range devices {
			ports = append(ports, port{Driver: nd.Name, Device: d.DisplayName()})
		}
	}
	return
}

func listPorts(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DRIVER\tDEVICE")
	for _, p := range detectPorts() {
		fmt.Fprintf(tw, "%s\t%s\n", p.Driver, p.Device)
	}
	_ = tw.Flush()
}

func driversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List the available link drivers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDRIVER\tDESCRIPTION")
			for _, nd := range link.Drivers() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", nd.Name, nd.Driver.DisplayName(), nd.Driver.DisplayDescription())
			}
			_ = tw.Flush()
		},
	}
}
