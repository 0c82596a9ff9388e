package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"git.sr.ht/~jackmordaunt/icogen/ico"
	"git.sr.ht/~jackmordaunt/icogen/rsrc"
	"github.com/spf13/cobra"
)

func newSysoCmd() *cobra.Command {
	var (
		output string
		arch   string
	)
	cmd := &cobra.Command{
		Use:   "syso <container.ico>",
		Short: "Pack a container into a .syso object for the Go linker",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			data, err := os.ReadFile(a[0])
			if err != nil {
				return err
			}
			if _, err := ico.Unmarshal(data); err != nil {
				return fmt.Errorf("decoding %s: %w", a[0], err)
			}
			if output == "" {
				output = fmt.Sprintf("rsrc_windows_%s.syso", arch)
			}
			if err := rsrc.Embed(output, arch, data); err != nil {
				return fmt.Errorf("embedding: %w", err)
			}
			logger.Info("wrote resource object", "path", output, "arch", arch)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Object path (default rsrc_windows_<arch>.syso)")
	cmd.Flags().StringVar(&arch, "arch", runtime.GOARCH, "Target architecture: "+strings.Join(rsrc.Arches, ", "))
	return cmd
}
