package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyward",
		Short: "Offline secp256k1 key and signature tooling",
		Long: `Offline secp256k1 key and signature tooling.

Every command runs locally without contacting a keyward server. Keys,
digests and signatures are hex encoded; a 0x prefix is accepted on input.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	cmd.AddCommand(
		newKeygenCmd(),
		newPubkeyCmd(),
		newExtractCmd(),
		newHashCmd(),
		newSignCmd(),
		newVerifyCmd(),
	)
	return cmd
}
