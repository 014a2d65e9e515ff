package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"acquisitions-gateway/middleware/admission/domain"
)

func newPoliciesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Print the effective role rate limit policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			policies, err := cfg.Admission.PolicyTable()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Role", "Window", "Max requests", "Rule"})
			for _, role := range domain.Roles() {
				p := policies.For(role)
				t.AppendRow(table.Row{role, p.Window.String(), p.MaxRequests, p.Name()})
			}
			t.AppendFooter(table.Row{"", "", "store", cfg.Admission.Store})
			t.Render()
			return nil
		},
	}
}
