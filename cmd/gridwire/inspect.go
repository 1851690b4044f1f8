package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vibing/gridwire/proto"
)

func inspectCmd() *cobra.Command {
	var (
		fromHex  bool
		segments bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Decode a frame dump and print header fields",
		Long: `Inspect decodes one or more concatenated frames from a file
(or stdin when no file is given) and prints each frame's header fields.
With --segments the body is additionally walked as length-prefixed
variable data segments.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args)
			if err != nil {
				return err
			}
			if fromHex {
				data, err = hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
				if err != nil {
					return fmt.Errorf("decode hex input: %w", err)
				}
			}
			return inspectFrames(cmd.OutOrStdout(), data, segments)
		},
	}

	cmd.Flags().BoolVar(&fromHex, "hex", false, "Input is hex text, not raw bytes")
	cmd.Flags().BoolVar(&segments, "segments", false, "Walk the body as var data segments")

	return cmd
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 1 {
		return os.ReadFile(args[0])
	}
	return io.ReadAll(os.Stdin)
}

func inspectFrames(w io.Writer, data []byte, segments bool) error {
	buf := proto.NewBuffer(data)
	for off, idx := 0, 0; off < len(data); idx++ {
		m := &proto.Message{}
		if err := m.WrapForDecode(buf, off); err != nil {
			return fmt.Errorf("frame %d at offset %d: %w", idx, off, err)
		}
		frameLen := int(m.FrameLength())
		if frameLen < proto.HeaderSize || off+frameLen > len(data) {
			return fmt.Errorf("frame %d at offset %d: frame length %d out of range", idx, off, frameLen)
		}

		fmt.Fprintf(w, "frame %d @ %d\n", idx, off)
		fmt.Fprintf(w, "  frameLength:   %d\n", m.FrameLength())
		fmt.Fprintf(w, "  correlationId: %d\n", m.CorrelationID())
		fmt.Fprintf(w, "  version:       %d\n", m.Version())
		fmt.Fprintf(w, "  flags:         0x%02X%s\n", m.Flags(), flagNames(m.Flags()))
		fmt.Fprintf(w, "  type:          %d\n", m.Type())
		fmt.Fprintf(w, "  dataOffset:    %d\n", m.DataOffset())

		if segments {
			for seg := 0; m.DataPosition()+proto.SizeOfVarDataLength <= frameLen; seg++ {
				b, err := m.GetVarData()
				if err != nil {
					return fmt.Errorf("frame %d segment %d: %w", idx, seg, err)
				}
				fmt.Fprintf(w, "  segment %d (%d bytes): %s\n", seg, len(b), hex.EncodeToString(b))
			}
		}

		off += frameLen
	}
	return nil
}

func flagNames(flags uint8) string {
	var names []string
	if flags&proto.BeginFlag != 0 {
		names = append(names, "BEGIN")
	}
	if flags&proto.EndFlag != 0 {
		names = append(names, "END")
	}
	if len(names) == 0 {
		return ""
	}
	return " (" + strings.Join(names, "|") + ")"
}
