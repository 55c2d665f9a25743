package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/abuild/internal/fingerprint"
)

func newHashCmd() *cobra.Command {
	hashCmd := &cobra.Command{
		Use:          "hash [dir]...",
		Short:        "Print the content hash of directories",
		Long:         `Print the hash abuild uses to detect changes, honouring .abuildignore files.`,
		RunE:         runHash,
		SilenceUsage: true,
	}

	hashCmd.Flags().BoolP("list", "l", false, "List the files included in the hash")

	return hashCmd
}

func runHash(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}

	list, _ := cmd.Flags().GetBool("list")
	out := cmd.OutOrStdout()

	for _, dir := range args {
		sum, err := fingerprint.HashDirectory(dir)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s  %s\n", sum, dir)

		if !list {
			continue
		}

		files, err := fingerprint.Walk(dir)
		if err != nil {
			return err
		}

		for _, f := range files {
			fmt.Fprintf(out, "    %s\n", f)
		}
	}

	return nil
}
