package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/pkg/pagination"
)

func newOrdersCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and manage orders",
	}

	var (
		page, perPage int
		user          string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user != "" {
				userID, err := parseID("user", user)
				if err != nil {
					return err
				}
				orders, err := s.engine.Orders.ListByUser(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if orders == nil {
					orders = []domain.Order{}
				}
				return s.print(orders)
			}

			params := pageParams(page, perPage)
			orders, total, err := s.engine.Orders.ListAll(cmd.Context(), params.Page, params.PerPage)
			if err != nil {
				return err
			}
			return s.print(pagination.NewResult(orders, total, params))
		},
	}
	addPageFlags(list, &page, &perPage)
	list.Flags().StringVar(&user, "user", "", "only list this user's orders (ignores paging)")

	get := &cobra.Command{
		Use:   "get <orderId>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseID("order", args[0])
			if err != nil {
				return err
			}
			order, err := s.engine.Orders.GetOrder(cmd.Context(), orderID)
			if err != nil {
				return err
			}
			return s.print(order)
		},
	}

	status := &cobra.Command{
		Use:   "status <orderId> <status>",
		Short: "Overwrite an order's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseID("order", args[0])
			if err != nil {
				return err
			}
			newStatus := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(args[1])))
			order, err := s.engine.Orders.UpdateStatus(cmd.Context(), orderID, newStatus)
			if err != nil {
				return err
			}
			return s.print(order)
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <orderId>",
		Short: "Cancel an order and return its stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseID("order", args[0])
			if err != nil {
				return err
			}
			if err := s.engine.Orders.Cancel(cmd.Context(), orderID); err != nil {
				return err
			}
			return s.print(map[string]string{"canceled": orderID})
		},
	}

	cmd.AddCommand(list, get, status, cancel)
	return cmd
}
