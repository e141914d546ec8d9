package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dTable/cmd/serve"
	"github.com/ValentinKolb/dTable/cmd/tbl"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dtable",
		Short: "transactional ordered table store",
		Long: fmt.Sprintf(`dTable (v%s)

A transactional, ordered table store written in Go, with record
merge updates, match-spec selection, per-table sequences and ordered
key traversal. Runs single-node on a database file or replicated via
RAFT consensus.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dTable",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dTable v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(tbl.TableCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
