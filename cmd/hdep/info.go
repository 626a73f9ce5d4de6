package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumen-os/hdep/header"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <module.hmod>",
		Short: "Print and verify a module container's header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if len(data) < header.Size {
				return fmt.Errorf("%s: short file, no header", args[0])
			}

			raw := data[:header.Size]
			desc, err := header.Decode(raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:         %s\n", desc.Name)
			fmt.Fprintf(out, "Author:       %s\n", desc.Author)
			fmt.Fprintf(out, "Version:      %s\n", desc.Version)
			fmt.Fprintf(out, "Type:         %s\n", desc.Type)
			fmt.Fprintf(out, "Required API: %s\n", header.Version(desc.RequiredAPI))
			fmt.Fprintf(out, "Built:        %s\n", time.Unix(int64(desc.Timestamp), 0).UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "Payload:      %d bytes\n", len(data)-header.Size)

			if len(desc.Deps) == 0 {
				fmt.Fprintf(out, "Deps:         none\n")
			} else {
				fmt.Fprintf(out, "Deps:\n")
				for _, dep := range desc.Deps {
					fmt.Fprintf(out, "  - %s\n", dep.Name())
				}
			}

			stored, computed, ok := header.Verify(raw)
			if !ok {
				return fmt.Errorf("checksum mismatch: header says %#08x, computed %#08x", stored, computed)
			}
			fmt.Fprintf(out, "Checksum:     %#08x (ok)\n", stored)
			return nil
		},
	}
}
