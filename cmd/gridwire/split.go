package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vibing/gridwire/config"
	"github.com/vibing/gridwire/frag"
)

func splitCmd() *cobra.Command {
	var (
		configPath    string
		out           string
		correlationID uint32
		msgType       uint16
		maxFrameSize  int
	)

	cmd := &cobra.Command{
		Use:   "split [payload-file]",
		Short: "Fragment a payload into a frame sequence",
		Long: `Split reads a logical payload from a file (or stdin) and emits the
fragmented frame sequence: first frame BEGIN, last frame END, all sharing
one correlation id. Frames are written concatenated to --out, or discarded
with only the summary printed when --out is empty.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}
			if maxFrameSize == 0 {
				maxFrameSize = cfg.Protocol.MaxFrameSize
			}

			payload, err := readInput(args)
			if err != nil {
				return err
			}

			frames, err := frag.Split(payload, correlationID, uint8(cfg.Protocol.Version), msgType, maxFrameSize)
			if err != nil {
				return err
			}

			var sink *os.File
			if out != "" {
				sink, err = os.Create(out)
				if err != nil {
					return err
				}
				defer sink.Close()
			}

			for i, m := range frames {
				b, err := m.Bytes()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "frame %d: %d bytes, flags 0x%02X\n", i, len(b), m.Flags())
				if sink != nil {
					if _, err := sink.Write(b); err != nil {
						return err
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bytes -> %d frames\n", len(payload), len(frames))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Protocol config file (YAML)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write concatenated frames to this file")
	cmd.Flags().Uint32Var(&correlationID, "correlation-id", 1, "Correlation id shared by all fragments")
	cmd.Flags().Uint16Var(&msgType, "type", 0, "Payload type code")
	cmd.Flags().IntVar(&maxFrameSize, "max-frame-size", 0, "Maximum frame size (default from config)")

	return cmd
}
