// Package cli contém os comandos cobra do gateway.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"acquisitions-gateway/internal/config"
)

type rootOptions struct {
	v       *viper.Viper
	cfgFile string
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.v, o.cfgFile)
}

// NewRootCmd monta a árvore de comandos com um viper novo.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:           "acquisitions-gateway",
		Short:         "API gateway with role-aware admission control",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default ./gateway.yaml or /etc/acquisitions-gateway/gateway.yaml)")
	cmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	_ = opts.v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newPoliciesCmd(opts))
	cmd.AddCommand(newTokenCmd(opts))
	return cmd
}

// Execute roda o comando raiz. Chamado pelo main.
func Execute() error {
	return NewRootCmd().Execute()
}
