package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

// newChunkCmd creates the 'chunk' debug command, which prints the chunks the
// extraction stage would send to the oracle for a local HTML file.
func newChunkCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "chunk <file.html>",
		Short: "Show how a saved HTML page is chunked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			// #nosec G304 -- the path is an explicit command argument.
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read html: %w", err)
			}
			chunks, err := appInstance.Chunker().HTML(string(raw))
			if err != nil {
				return fmt.Errorf("chunk html: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				for _, c := range chunks {
					if err := enc.Encode(c); err != nil {
						return fmt.Errorf("encode chunk: %w", err)
					}
				}
				return nil
			}
			for i, c := range chunks {
				if _, err := fmt.Fprintf(out, "--- chunk %d [%d,%d) %d runes ---\n%s\n",
					i+1, c.StartPos, c.EndPos, utf8.RuneCountInString(c.Text), c.Text); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(out, "%d chunks (size %d, overlap %d)\n",
				len(chunks), appInstance.Chunker().Size(), appInstance.Chunker().Overlap())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per chunk")
	return cmd
}
