package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ostafen/sigcrawl/internal/client"
	"github.com/ostafen/sigcrawl/internal/protocol"
	"github.com/spf13/cobra"
)

func DefineSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "send <command> <params>",
		Short:        "Send a single request to a running server",
		Example:      `  sigcrawl send CheckLocalFile '{"file_path": "test.txt", "signature": "6d70 6f72 7420"}'`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunSend,
	}

	cmd.Flags().StringP("addr", "a", client.DefaultAddr, "server address")
	cmd.Flags().Duration("timeout", 0, "give up after this long (0 waits forever)")
	cmd.Flags().Int("dscp", 0, "DSCP value to mark the request packets with (0-63)")

	return cmd
}

func RunSend(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	dscp, _ := cmd.Flags().GetInt("dscp")

	params := json.RawMessage(args[1])
	if !json.Valid(params) {
		return errors.New("parameters should be in valid JSON format")
	}

	req, err := protocol.EncodeRawRequest(args[0], params)
	if err != nil {
		return err
	}

	c := client.New(addr, client.WithTimeout(timeout), client.WithDSCP(dscp))

	resp, err := c.SendRaw(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Response: %s\n", resp)
	return nil
}
