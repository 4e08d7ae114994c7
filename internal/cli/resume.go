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

type ResumeCmd struct{}

func NewResumeCmd() *ResumeCmd {
	return &ResumeCmd{}
}

func (c *ResumeCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <destination>",
		Short: "Re-activate a paused route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, jsonOut, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if jsonOut {
				raw, err := client.Raw(ctx, http.MethodPatch, server.RouteActivatePath, server.RouteRef{To: args[0]})
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			message, err := client.ActivateRoute(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(message)
			return nil
		},
	}
}
