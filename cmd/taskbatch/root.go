package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "taskbatch",
		Short: "Run batches of asynchronous tasks in queue or pool mode",
		Long: `taskbatch drives a list of callback-style tasks to completion, either
one at a time (queue mode) or concurrently in bounded chunks (pool mode),
and reports the collected results.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default is ./taskbatch.yaml)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(newRunCmd(v))
	return root
}
