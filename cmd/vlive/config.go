package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/Paranoid-AF/vlive"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration and any warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			path := flags.configPath
			if path == "" {
				path = vlive.ConfigPath()
			}
			fmt.Fprintf(w, "# %s\n", path)
			fmt.Fprintf(w, "# effective url: %s\n", resolveURL(*flags, cfg))
			for _, warning := range vlive.ValidateConfig(cfg) {
				fmt.Fprintf(w, "# warning: %s\n", warning)
			}
			if err := toml.NewEncoder(w).Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), vlive.ConfigPath())
		},
	})
	return cmd
}
