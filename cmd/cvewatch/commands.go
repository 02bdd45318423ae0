package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/cvewatch/internal/app"
	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/catalog"
)

func (c *cli) repairCmd() *cobra.Command {
	var vendor string
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Decompose catalog products that are still missing CPE fields",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
			vendorID := ""
			if vendor != "" {
				v, err := a.Store.GetVendorByName(ctx, vendor)
				if err != nil {
					return fmt.Errorf("vendor %q: %w", vendor, err)
				}
				vendorID = v.ID
			}
			res, err := a.Matcher.RepairDirtyProducts(ctx, vendorID)
			if err != nil {
				return err
			}
			if err := a.Audit.Log(ctx, domain.ActionCatalogRepaired, "catalog", fmt.Sprintf("repaired=%d malformed=%d", res.Repaired, res.Malformed)); err != nil {
				c.log.Warn("audit log failed", "error", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
	cmd.Flags().StringVar(&vendor, "vendor", "", "Only repair products of this vendor")
	return cmd
}

func (c *cli) importCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-catalog FILE",
		Short: "Load CPE names (one per line) into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			names, err := catalog.ReadNames(f)
			if err != nil {
				return err
			}
			res, err := a.Importer.ImportCatalog(ctx, names)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func (c *cli) importCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-category NAME FILE",
		Short: "Add the products listed in a vendor,product,version CSV to a category",
		Args:  cobra.ExactArgs(2),
		RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := catalog.ReadRows(f)
			if err != nil {
				return err
			}
			res, err := a.Importer.ImportCategory(ctx, args[0], rows)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func (c *cli) keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "keys user|category ID",
		Short:     "Print the match-keys a user or category currently covers",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(domain.SubjectUser), string(domain.SubjectCategory)},
		RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
			var (
				keys mapset.Set[string]
				err  error
			)
			switch domain.SubjectKind(args[0]) {
			case domain.SubjectUser:
				keys, err = a.Subscriptions.UserKeys(ctx, args[1])
			case domain.SubjectCategory:
				keys, err = a.Subscriptions.CategoryKeys(ctx, args[1])
			default:
				return fmt.Errorf("%w: %q", domain.ErrInvalidSubject, args[0])
			}
			if err != nil {
				return err
			}
			out := keys.ToSlice()
			sort.Strings(out)
			for _, k := range out {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		}),
	}
}

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage subscribers"}

	var email string
	create := &cobra.Command{
		Use:   "create USERNAME",
		Short: "Register a subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
			u, err := a.Subscriptions.CreateUser(ctx, args[0], email)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		}),
	}
	create.Flags().StringVar(&email, "email", "", "Contact address")

	cmd.AddCommand(create)
	return cmd
}

func (c *cli) categoryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "category", Short: "Manage categories"}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create an empty category",
			Args:  cobra.ExactArgs(1),
			RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
				cat, err := a.Subscriptions.CreateCategory(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cat)
			}),
		},
		&cobra.Command{
			Use:   "rename OLD NEW",
			Short: "Rename a category",
			Args:  cobra.ExactArgs(2),
			RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
				return a.Subscriptions.RenameCategory(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete a category and its memberships",
			Args:  cobra.ExactArgs(1),
			RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
				return a.Subscriptions.DeleteCategory(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List categories",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
				cats, err := a.Subscriptions.ListCategories(ctx)
				if err != nil {
					return err
				}
				for _, cat := range cats {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", cat.ID, cat.Name)
				}
				return nil
			}),
		},
	)
	return cmd
}

// subscribeCmd builds the subscribe or unsubscribe command.
func (c *cli) subscribeCmd(follow bool) *cobra.Command {
	use, short := "subscribe", "Follow a vendor, product or category"
	if !follow {
		use, short = "unsubscribe", "Stop following a vendor, product or category"
	}
	return &cobra.Command{
		Use:   use + " USER_ID KIND ID",
		Short: short,
		Long: "KIND is one of vendor, product, category, categoryproduct or categoryvendor.\n" +
			"Category member kinds take CATEGORY_ID+MEMBER_ID as ID.",
		Args: cobra.ExactArgs(3),
		RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
			target, err := domain.ParseTarget(args[1], args[2])
			if err != nil {
				return err
			}
			if follow {
				return a.Subscriptions.Subscribe(ctx, args[0], target)
			}
			return a.Subscriptions.Unsubscribe(ctx, args[0], target)
		}),
	}
}
