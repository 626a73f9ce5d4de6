package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumen-os/hdep/manager"
)

func newStackCmd() *cobra.Command {
	var runInit bool

	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Load the hibernation stack (best effort) and report each step",
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

			if _, err := mgr.Scan(ctx, cfg.dir()); err != nil {
				log.Warn("scan finished with errors", zap.Error(err))
			}

			report := mgr.LoadStack(ctx)
			if runInit {
				for i, step := range report {
					if step.Err != nil {
						continue
					}
					if err := mgr.Init(ctx, step.Name); err != nil {
						report[i].Err = err
					}
				}
			}

			fmt.Fprint(cmd.OutOrStdout(), renderStack(report))
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(mgr.Status()))

			for _, step := range report {
				if step.Err != nil {
					return fmt.Errorf("stack incomplete: %s: %w", step.Name, step.Err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&runInit, "init", false, "run each loaded module's entry point")
	return cmd
}
