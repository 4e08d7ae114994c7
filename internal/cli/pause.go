package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/routeman/internal/server"
)

type PauseCmd struct{}

func NewPauseCmd() *PauseCmd {
	return &PauseCmd{}
}

func (c *PauseCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <destination>",
		Short: "Pause an active route without losing its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, jsonOut, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if jsonOut {
				raw, err := client.Raw(ctx, http.MethodPatch, server.RoutePausePath, server.RouteRef{To: args[0]})
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			message, err := client.PauseRoute(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(message)
			return nil
		},
	}
}
