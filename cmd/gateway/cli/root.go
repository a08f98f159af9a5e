package cli

import (
	"merchant-trust-gateway/config"

	"github.com/spf13/cobra"
)

// Execute creates the root command tree and runs it.
func Execute(version, commit string) error {
	return newRootCmd(version, commit).Execute()
}

func newRootCmd(version, commit string) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Merchant trust gateway",
		Long: `Merchant trust gateway: HMAC-signed merchant API, replay protection,
dashboard sessions and manual UTR verification of payments.

Configuration is read from ./config.yaml or ./config/config.yaml unless
--config is given. Every key can be overridden with an MTG_ environment
variable, e.g. MTG_DATABASE_HOST.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version + " (" + commit + ")",
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	load := func() (*config.Config, error) {
		return config.Load(cfgFile)
	}

	cmd.AddCommand(newServeCmd(load))
	cmd.AddCommand(newMigrateCmd(load))
	cmd.AddCommand(newSignCmd())

	return cmd
}
