package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/routeman/internal/server"
)

type ListCmd struct{}

func NewListCmd() *ListCmd {
	return &ListCmd{}
}

func (c *ListCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show stored routes and the kernel routing table",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, jsonOut, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if jsonOut {
				raw, err := client.Raw(ctx, http.MethodGet, server.RoutesPath, nil)
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			resp, err := client.ListRoutes(ctx)
			if err != nil {
				return err
			}

			fmt.Println("Database routes:")
			table := newTable("To", "Via", "Dev", "Create At", "Delete At", "Active", "Status")
			for _, rt := range resp.DatabaseRoutes {
				table.Append([]string{
					rt.To,
					rt.Via,
					rt.Dev,
					formatTime(&rt.CreateAt),
					formatTime(rt.DeleteAt),
					strconv.FormatBool(rt.Active),
					string(rt.Status),
				})
			}
			table.Render()

			fmt.Println("System routes:")
			for _, line := range resp.SystemRoutes {
				fmt.Println(" ", line)
			}
			return nil
		},
	}
}
