package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"kioskpos/internal/kiosk"
	"kioskpos/internal/models"
	"kioskpos/internal/poll"

	"github.com/spf13/cobra"
)

// watchCommand is the read-only screen loop for the cashier, kitchen and
// turn monitor roles.
func (a *app) watchCommand() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:       "watch kitchen|cashier|monitor",
		Short:     "Keep a screen view refreshed",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"kitchen", "cashier", "monitor"},
		RunE: func(cmd *cobra.Command, args []string) error {
			onError := func(err error) {
				key, msg := kiosk.Describe(err)
				a.notifier.Error(args[0]+"-"+key, msg)
			}
			options := poll.Options{Interval: interval, Name: args[0], OnError: onError}

			switch args[0] {
			case "kitchen":
				return a.watchOrders(cmd.Context(), a.api.KitchenActive, options)
			case "cashier":
				return a.watchOrders(cmd.Context(), a.api.PendingPayment, options)
			case "monitor":
				p := poll.New(func(ctx context.Context) (models.Order, error) {
					order, found, err := a.api.CurrentDisplay(ctx)
					if err != nil || !found {
						return models.Order{}, err
					}
					return order, nil
				}, func(order models.Order) {
					clearScreen()
					if order.TurnNumber == "" {
						fmt.Println("NOW SERVING  ---")
						return
					}
					fmt.Printf("NOW SERVING  %s\n", order.TurnNumber)
				}, options)
				p.Run(cmd.Context())
				return nil
			default:
				return fmt.Errorf("unknown view %q", args[0])
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", poll.DefaultInterval, "refresh interval")
	return cmd
}

func (a *app) watchOrders(ctx context.Context, fetch func(context.Context) ([]models.Order, error), options poll.Options) error {
	p := poll.New(fetch, func(orders []models.Order) {
		clearScreen()
		fmt.Printf("%s  %s  (%d orders)\n\n", options.Name, time.Now().Format("15:04:05"), len(orders))
		printOrders(os.Stdout, orders)
	}, options)
	p.Run(ctx)
	return nil
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}
