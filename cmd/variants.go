package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/vaultpurge/internal/vault"
)

// newVariantsCmd creates the `variants` command. Without arguments it lists the known
// vault UI variants; with a name it prints that variant's selectors after applying the
// vault.selectors overrides from the config.
func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants [name]",
		Short: "List the supported vault UI variants or show one variant's selectors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			if len(args) == 0 {
				fmt.Fprintln(w, "NAME\tDESCRIPTION")
				for _, name := range vault.Names() {
					p, _ := vault.Lookup(name)
					fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Description)
				}
				return w.Flush()
			}

			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			p, err := vault.Lookup(args[0])
			if err != nil {
				return err
			}
			if p, err = p.WithOverrides(cfg.Vault.Selectors); err != nil {
				return err
			}

			fmt.Fprintln(w, "KEY\tSELECTOR")
			for _, key := range p.SelectorKeys() {
				value := p.Selector(key)
				if value == "" {
					value = "-"
				}
				fmt.Fprintf(w, "%s\t%s\n", key, value)
			}
			return w.Flush()
		},
	}
}
