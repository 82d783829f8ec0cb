package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"kioskpos/internal/client"

	"github.com/spf13/cobra"
)

func (a *app) productCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage the catalogue (admin)",
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List products, including unavailable ones with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			fetch := a.api.Products
			if all {
				fetch = a.api.AllProducts
			}
			products, err := fetch(cmd.Context())
			if err != nil {
				return err
			}
			printProducts(os.Stdout, products)
			return nil
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include unavailable products")

	var req client.ProductRequest
	var hidden, featured bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			available := !hidden
			req.Available = &available
			req.Featured = &featured
			req.Category = strings.ToUpper(req.Category)
			product, err := a.api.CreateProduct(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Println(product.ProductID)
			return nil
		},
	}
	create.Flags().StringVar(&req.Name, "name", "", "product name")
	create.Flags().StringVar(&req.Description, "description", "", "description")
	create.Flags().Int64Var(&req.Price, "price", 0, "price in currency units")
	create.Flags().StringVar(&req.Category, "category", "", "category")
	create.Flags().StringVar(&req.ImageURL, "image", "", "image URL")
	create.Flags().BoolVar(&hidden, "hidden", false, "create as unavailable")
	create.Flags().BoolVar(&featured, "featured", false, "feature on the home screen")

	toggleAvailability := &cobra.Command{
		Use:   "toggle-availability PRODUCT_ID",
		Short: "Take a product off sale or back on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			product, err := a.api.ToggleAvailability(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s available=%t\n", product.Name, product.Available)
			return nil
		},
	}

	toggleFeatured := &cobra.Command{
		Use:   "toggle-featured PRODUCT_ID",
		Short: "Feature or unfeature a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			product, err := a.api.ToggleFeatured(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s featured=%t\n", product.Name, product.Featured)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete PRODUCT_ID",
		Short: "Remove a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.api.DeleteProduct(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, create, toggleAvailability, toggleFeatured, remove)
	return cmd
}

func (a *app) reportCommand() *cobra.Command {
	var from, to, out string
	var limit int
	cmd := &cobra.Command{
		Use:       "report today|range|top|stats|export",
		Short:     "Sales reports (admin)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"today", "range", "top", "stats", "export"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var result interface{}
			var err error
			switch args[0] {
			case "today":
				result, err = a.api.ReportToday(ctx)
			case "range":
				result, err = a.api.ReportRange(ctx, from, to)
			case "top":
				result, err = a.api.TopProducts(ctx, from, to, limit)
			case "stats":
				result, err = a.api.Statistics(ctx)
			case "export":
				w := os.Stdout
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return a.api.ExportCSV(ctx, from, to, w)
			default:
				return fmt.Errorf("unknown report %q", args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first business date (default today)")
	cmd.Flags().StringVar(&to, "to", "", "last business date (default today)")
	cmd.Flags().IntVar(&limit, "limit", 10, "products in the top list")
	cmd.Flags().StringVarP(&out, "out", "o", "", "CSV output file for export")
	return cmd
}
