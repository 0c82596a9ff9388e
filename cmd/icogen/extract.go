package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~jackmordaunt/icogen/extract"
	"git.sr.ht/~jackmordaunt/icogen/internal/util"
	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var (
		output string
		pe     bool
	)
	cmd := &cobra.Command{
		Use:   "extract <module> [resource-id]",
		Short: "Extract a group icon from an executable or library",
		Long: `Without a resource id, extract lists the group icon ids in the module.
With one, it rebuilds that group as a standalone .ico. Ids are numbers
("1", "#1") or names ("MAINICON").`,
		Args: args(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, a []string) error {
			x := extract.New(logger)
			if pe {
				x.Open = extract.OpenPEFile
			}
			if len(a) == 1 {
				ids, err := x.List(a[0])
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}
			id := extract.ParseResourceID(a[1])
			res, err := x.Extract(cmd.Context(), a[0], id)
			if err != nil {
				return err
			}
			dest := output
			if dest == "" {
				base := strings.TrimSuffix(filepath.Base(a[0]), filepath.Ext(a[0]))
				dest = fmt.Sprintf("%s-%s.ico", base, id)
			}
			tmp := dest + ".tmp"
			if err := os.WriteFile(tmp, res.Data, 0o644); err != nil {
				return err
			}
			if err := util.Replace(tmp, dest); err != nil {
				os.Remove(tmp)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames to %s\n", len(res.Container.Frames), dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Container path (default <module>-<id>.ico)")
	cmd.Flags().BoolVar(&pe, "pe", false, "Parse the module file directly instead of using the OS loader")
	return cmd
}
