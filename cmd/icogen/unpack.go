package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~jackmordaunt/icogen/ico"
	"github.com/spf13/cobra"
)

func newUnpackCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "unpack <container.ico>",
		Short: "List the frames of a container and write each as PNG",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			f, err := os.Open(a[0])
			if err != nil {
				return err
			}
			defer f.Close()
			c, err := ico.Decode(f)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", a[0], err)
			}
			out := cmd.OutOrStdout()
			for ii, frame := range c.Frames {
				marker := ""
				if ii == 0 {
					marker = " (best)"
				}
				fmt.Fprintf(out, "%s%s\n", frame, marker)
			}
			if dir == "" {
				return nil
			}
			return writeFrames(dir, a[0], c)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Write <base>-<side>.png for every frame into this directory")
	return cmd
}

// writeFrames writes frames as PNG. Frames sharing a side length, such as
// several depths of one size, keep only the first and best.
func writeFrames(dir, container string, c *ico.Container) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(container), filepath.Ext(container))
	written := make(map[int]bool)
	for _, frame := range c.Frames {
		if written[frame.SideLength] {
			continue
		}
		data, err := ico.EncodePNG(frame)
		if err != nil {
			logger.Warn("skipping frame", "frame", frame.String(), "error", err)
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-%d.png", base, frame.SideLength))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		written[frame.SideLength] = true
		logger.Info("wrote frame", "path", path)
	}
	return nil
}
