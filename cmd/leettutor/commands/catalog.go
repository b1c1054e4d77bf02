package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codecoach/leettutor/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Problem catalog maintenance",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Load a catalog directory and report any unsafe or malformed problems",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogValidate,
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd)
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cat, err := catalog.Load(dir)
	if err != nil {
		return err
	}

	problems := cat.List()
	fmt.Printf("ok: %d problem(s) loaded from %s\n", len(problems), dir)
	return nil
}
