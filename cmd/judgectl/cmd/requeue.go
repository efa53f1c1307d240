package cmd

import (
	"github.com/spf13/cobra"
)

func newRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue",
		Short: "Push every submission still in Judging back onto the judge queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeAll := maintenance()
			defer closeAll()

			n, err := svc.RequeuePending(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "requeued %d submission(s)\n", n)
			return nil
		},
	}
}
