package cmd

import (
	"fmt"

	"github.com/ostafen/sigcrawl/internal/protocol"
	"github.com/ostafen/sigcrawl/internal/signature"
	"github.com/spf13/cobra"
)

func DefineCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file> <signature>",
		Short: "Search a local file for a hex signature without a server",
		Long: `The 'check' command runs the same search as the CheckLocalFile request in-process
and prints the JSON response. Whitespace inside the hex signature is ignored.`,
		Example:      `  sigcrawl check ./sample.bin "4d5a 9000"`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunCheck,
	}
	return cmd
}

func RunCheck(cmd *cobra.Command, args []string) error {
	resp := signature.NewChecker().CheckFileSignature(args[0], args[1])

	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
