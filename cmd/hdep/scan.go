package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumen-os/hdep/header"
	"github.com/lumen-os/hdep/manager"
)

func newScanCmd() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:     "scan",
		Aliases: []string{"status"},
		Short:   "Scan the module directory and print the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			defer log.Sync()

			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			opts, err := cfg.options(log)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			mgr, err := manager.New(ctx, opts)
			if err != nil {
				return err
			}
			defer mgr.Close(ctx)

			total, err := mgr.Scan(ctx, cfg.dir())
			if err != nil {
				// A partial catalog is still worth showing.
				log.Warn("scan finished with errors", zap.Error(err))
			}
			log.Info("scan complete", zap.Int("modules", total))

			if typeName != "" {
				mask, ok := header.TypeFromName(typeName)
				if !ok {
					return fmt.Errorf("unknown module type %q", typeName)
				}
				for _, name := range mgr.ByType(mask) {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), renderStatus(mgr.Status()))
			return err
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "list only module names of this type (core, compress, encrypt, network, storage, hardware)")
	return cmd
}
