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

type AddCmd struct{}

func NewAddCmd() *AddCmd {
	return &AddCmd{}
}

func (c *AddCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <destination>",
		Short: "Schedule a route for the given destination",
		Long: `Schedule a route for the given destination. The route enters the
kernel routing table when its activation window opens and leaves it when
the window closes. Without --create-at the window opens immediately;
without --delete-at it never closes.`,
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

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if jsonOut {
				raw, err := client.Raw(ctx, http.MethodPut, server.RouteItemPath, req)
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			message, err := client.AddRoute(ctx, req)
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

func addRouteFlags(cmd *cobra.Command) {
	cmd.Flags().String("via", "", "gateway address for the route")
	cmd.Flags().String("dev", "", "output interface for the route")
	cmd.Flags().String("create-at", "", "activation time, RFC 3339 (default: now)")
	cmd.Flags().String("delete-at", "", "expiry time, RFC 3339 (default: never)")
}

func routeRequestFromFlags(cmd *cobra.Command, to string) (routes.RouteRequest, error) {
	via, err := cmd.Flags().GetString("via")
	if err != nil {
		return routes.RouteRequest{}, fmt.Errorf("failed to get via flag: %w", err)
	}
	dev, err := cmd.Flags().GetString("dev")
	if err != nil {
		return routes.RouteRequest{}, fmt.Errorf("failed to get dev flag: %w", err)
	}
	createAt, err := cmd.Flags().GetString("create-at")
	if err != nil {
		return routes.RouteRequest{}, fmt.Errorf("failed to get create-at flag: %w", err)
	}
	deleteAt, err := cmd.Flags().GetString("delete-at")
	if err != nil {
		return routes.RouteRequest{}, fmt.Errorf("failed to get delete-at flag: %w", err)
	}
	return routes.RouteRequest{
		To:       to,
		Via:      via,
		Dev:      dev,
		CreateAt: createAt,
		DeleteAt: deleteAt,
	}, nil
}
