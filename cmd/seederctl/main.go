package main

import (
    "log"

    "github.com/spf13/cobra"

    seedercli "github.com/amirimatin/go-meshseed/pkg/cli"
)

func main() {
    if err := newRoot().Execute(); err != nil {
        log.Fatal(err)
    }
}

func newRoot() *cobra.Command {
    root := &cobra.Command{
        Use:           "seederctl",
        Short:         "go-meshseed node and management CLI",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    seedercli.AddAll(root)
    return root
}
