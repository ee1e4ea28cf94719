// Command mockupstream runs the scriptable flaky JSON server used to
// drive hedge-coordinator scenarios. Adapted from
// original_source/tools/mockserver.py's command-line entrypoint.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/aponysus/hedgeproxy/internal/mockupstream"
)

func main() {
	var host string
	var port int

	root := &cobra.Command{
		Use:   "mockupstream",
		Short: "Scriptable flaky upstream for hedge coordinator testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := mockupstream.NewHandler()
			addr := fmt.Sprintf("%s:%d", host, port)
			fmt.Fprintf(os.Stderr, "mockupstream listening on %s\n", addr)
			return http.ListenAndServe(addr, handler.Router())
		},
	}

	root.Flags().StringVar(&host, "host", "0.0.0.0", "address to bind")
	root.Flags().IntVar(&port, "port", 8001, "port to bind")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
