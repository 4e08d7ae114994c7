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

type HistoryCmd struct{}

func NewHistoryCmd() *HistoryCmd {
	return &HistoryCmd{}
}

func (c *HistoryCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show deleted and expired routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, jsonOut, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if jsonOut {
				raw, err := client.Raw(ctx, http.MethodGet, server.DeletedRoutesPath, nil)
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			resp, err := client.DeletedRoutes(ctx)
			if err != nil {
				return err
			}

			table := newTable("To", "Via", "Dev", "Create At", "Delete At", "Status", "Removed At")
			for _, rt := range resp.DeletedRoutes {
				table.Append([]string{
					rt.To,
					rt.Via,
					rt.Dev,
					formatTime(&rt.CreateAt),
					formatTime(rt.DeleteAt),
					string(rt.Status),
					formatTime(&rt.RemovedAt),
				})
			}
			table.Render()
			return nil
		},
	}
}
