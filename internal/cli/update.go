package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/routeman/internal/routes"
	"github.com/malbeclabs/routeman/internal/server"
)

type UpdateCmd struct{}

func NewUpdateCmd() *UpdateCmd {
	return &UpdateCmd{}
}

func (c *UpdateCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <destination>",
		Short: "Update an existing route's next hop or window",
		Long: `Update an existing route. Only the given flags change; setting
--via clears the interface and setting --dev clears the gateway. The
route drops back to pending and the daemon re-installs it on the next
sweep if its window is open.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, jsonOut, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			req, err := routeRequestFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			update := routes.RouteUpdate{
				To:       req.To,
				Via:      req.Via,
				Dev:      req.Dev,
				CreateAt: req.CreateAt,
				DeleteAt: req.DeleteAt,
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if jsonOut {
				raw, err := client.Raw(ctx, http.MethodPatch, server.RouteItemPath, update)
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			message, err := client.UpdateRoute(ctx, update)
			if err != nil {
				return err
			}
			fmt.Println(message)
			return nil
		},
	}

	addRouteFlags(cmd)
	return cmd
}
