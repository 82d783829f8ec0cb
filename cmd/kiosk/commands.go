package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"kioskpos/internal/cart"
	"kioskpos/internal/client"
	"kioskpos/internal/kiosk"
	"kioskpos/internal/models"
	"kioskpos/internal/session"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) loginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a staff member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("KIOSK_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}
			resp, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := a.sessions.Save(session.Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt, User: resp.User}); err != nil {
				return err
			}
			fmt.Printf("signed in as %s (%s) until %s\n", resp.User.Name, resp.User.Role, resp.ExpiresAt.Local().Format("15:04"))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "staff email")
	cmd.Flags().StringVar(&password, "password", "", "password (or KIOSK_PASSWORD)")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.sessions.Clear()
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in staff member",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.api.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s <%s> role=%s\n", user.Name, user.Email, user.Role)
			return nil
		},
	}
}

func (a *app) menuCommand() *cobra.Command {
	var category string
	var featured bool
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "List the products on sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			var products []models.Product
			var err error
			switch {
			case featured:
				products, err = a.api.FeaturedProducts(cmd.Context())
			case category != "":
				products, err = a.api.ProductsByCategory(cmd.Context(), strings.ToUpper(category))
			default:
				products, err = a.api.Products(cmd.Context())
			}
			if err != nil {
				return err
			}
			printProducts(os.Stdout, products)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only this category")
	cmd.Flags().BoolVar(&featured, "featured", false, "only featured products")
	return cmd
}

func (a *app) orderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "order PRODUCT_ID[:QTY]...",
		Short: "Build a cart and submit it as a new order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cart.New()
			if err := fillCart(cmd.Context(), c, args, a.api.Product); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, line := range c.Lines() {
				fmt.Fprintf(tw, "%d x\t%s\t%s\n", line.Quantity, line.Product.Name, money(line.Subtotal()))
			}
			fmt.Fprintf(tw, "\tTOTAL\t%s\n", money(c.Total()))
			_ = tw.Flush()

			order, err := kiosk.Checkout(cmd.Context(), c, a.api)
			if err != nil {
				return err
			}
			fmt.Printf("\nYour turn: %s\nPlease pay %s at the cashier.\n", order.TurnNumber, money(order.Total))
			return nil
		},
	}
}

func (a *app) ordersCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List the orders of a business date",
		RunE: func(cmd *cobra.Command, args []string) error {
			orders, err := a.api.Orders(cmd.Context(), date)
			if err != nil {
				return err
			}
			printOrders(os.Stdout, orders)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "business date YYYY-MM-DD (default today)")
	return cmd
}

func (a *app) pendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List today's orders waiting for payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			orders, err := a.api.PendingPayment(cmd.Context())
			if err != nil {
				return err
			}
			printOrders(os.Stdout, orders)
			return nil
		},
	}
}

func (a *app) kitchenCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "kitchen",
		Short: "List the orders the kitchen is preparing",
		RunE: func(cmd *cobra.Command, args []string) error {
			fetch := a.api.KitchenActive
			if all {
				fetch = a.api.KitchenView
			}
			orders, err := fetch(cmd.Context())
			if err != nil {
				return err
			}
			printOrders(os.Stdout, orders)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include ready orders (admin)")
	return cmd
}

func (a *app) advanceCommand() *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:       "advance ORDER_ID ACTION",
		Short:     "Move an order along: mark-paid, cancel, mark-ready, send-to-display, mark-delivered",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{client.ActionMarkPaid, client.ActionCancel, client.ActionMarkReady, client.ActionSendToDisplay, client.ActionMarkDelivered},
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				requestID = uuid.NewString()
			}
			order, err := a.api.Advance(cmd.Context(), args[0], args[1], requestID)
			if err != nil {
				return err
			}
			fmt.Printf("turn %s is now %s\n", order.TurnNumber, order.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "idempotency key; reuse it to retry safely")
	return cmd
}

func (a *app) displayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "display",
		Short: "Show the turn currently on the monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			order, found, err := a.api.CurrentDisplay(cmd.Context())
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("---")
				return nil
			}
			fmt.Println(order.TurnNumber)
			return nil
		},
	}
}

// fillCart adds every PRODUCT_ID[:QTY] argument to c. Repeating a product adds
// to its line, so "p p:2" orders three.
func fillCart(ctx context.Context, c *cart.Cart, args []string, lookup func(context.Context, string) (models.Product, error)) error {
	for _, arg := range args {
		productID, quantity, err := parseLine(arg)
		if err != nil {
			return err
		}
		product, err := lookup(ctx, productID)
		if err != nil {
			return err
		}
		c.Add(product, quantity)
	}
	return nil
}

func parseLine(arg string) (string, int, error) {
	productID, rawQty, hasQty := strings.Cut(arg, ":")
	if productID == "" {
		return "", 0, fmt.Errorf("invalid item %q", arg)
	}
	if !hasQty {
		return productID, 1, nil
	}
	quantity, err := strconv.Atoi(rawQty)
	if err != nil || quantity < 1 {
		return "", 0, fmt.Errorf("invalid quantity in %q", arg)
	}
	return productID, quantity, nil
}

func printProducts(w io.Writer, products []models.Product) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tNAME\tPRICE\tAVAILABLE\tFEATURED")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\n", p.ProductID, p.Category, p.Name, money(p.Price), p.Available, p.Featured)
	}
	_ = tw.Flush()
}

func printOrders(w io.Writer, orders []models.Order) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TURN\tSTATUS\tTOTAL\tITEMS\tCREATED\tID")
	for _, o := range orders {
		items := make([]string, 0, len(o.Items))
		for _, item := range o.Items {
			items = append(items, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", o.TurnNumber, o.Status, money(o.Total), strings.Join(items, ", "), o.CreatedAt.Local().Format("15:04"), o.OrderID)
	}
	_ = tw.Flush()
}

// money formats integer currency units with thousands separators.
func money(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}
