package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/five82/shopfront/internal/app"
	"github.com/five82/shopfront/internal/cartapi"
	"github.com/five82/shopfront/internal/cartsync"
	"github.com/five82/shopfront/internal/logtail"
	"github.com/five82/shopfront/internal/mockapi"
	"github.com/five82/shopfront/internal/pending"
)

func productsCommand() *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "list the catalog (cached when offline)",
		Action: func(c *cli.Context) error {
			return withRuntime(c, func(rt *app.Runtime) error {
				products, err := rt.Sync.Products(c.Context)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(products))
				for _, p := range products {
					rows = append(rows, []string{p.SKU, p.Name, price(p.Price), p.Category})
				}
				printTable(c.App.Writer, []string{"SKU", "NAME", "PRICE", "CATEGORY"}, rows)
				return nil
			})
		},
	}
}

func cartCommand() *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "inspect or change the cart",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "show the cart",
				Action: func(c *cli.Context) error {
					return withRuntime(c, func(rt *app.Runtime) error {
						items, err := rt.Sync.GetItems(c.Context)
						if err != nil {
							return err
						}
						printCart(c.App.Writer, items)
						return nil
					})
				},
			},
			{
				Name:      "add",
				Usage:     "add a product by SKU",
				ArgsUsage: "SKU",
				Flags:     []cli.Flag{&cli.IntFlag{Name: "qty", Value: 1, Usage: "quantity to add"}},
				Action: func(c *cli.Context) error {
					sku := c.Args().First()
					if sku == "" {
						return cli.Exit("cart add: SKU required", 2)
					}
					return withRuntime(c, func(rt *app.Runtime) error {
						item := cartapi.NewItem{ItemID: sku, Quantity: c.Int("qty")}
						if p, ok := findProduct(c.Context, rt.Sync, sku); ok {
							item = p.NewItem(c.Int("qty"))
						}
						items, err := rt.Sync.Add(c.Context, item)
						return report(c, items, err)
					})
				},
			},
			{
				Name:      "update",
				Usage:     "set the quantity of a cart item (0 removes)",
				ArgsUsage: "ITEM_ID QUANTITY",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("cart update: ITEM_ID and QUANTITY required", 2)
					}
					qty, err := strconv.Atoi(c.Args().Get(1))
					if err != nil {
						return cli.Exit(fmt.Sprintf("cart update: bad quantity %q", c.Args().Get(1)), 2)
					}
					return withRuntime(c, func(rt *app.Runtime) error {
						items, err := rt.Sync.UpdateQuantity(c.Context, c.Args().First(), qty)
						return report(c, items, err)
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "remove a cart item",
				ArgsUsage: "ITEM_ID",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return cli.Exit("cart remove: ITEM_ID required", 2)
					}
					return withRuntime(c, func(rt *app.Runtime) error {
						items, err := rt.Sync.Remove(c.Context, id)
						return report(c, items, err)
					})
				},
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Action: func(c *cli.Context) error {
					return withRuntime(c, func(rt *app.Runtime) error {
						items, err := rt.Sync.Clear(c.Context)
						return report(c, items, err)
					})
				},
			},
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "replay queued changes against the backend",
		Action: func(c *cli.Context) error {
			return withRuntime(c, func(rt *app.Runtime) error {
				res, err := rt.Sync.Drain(c.Context)
				if errors.Is(err, cartsync.ErrOffline) {
					return cli.Exit(fmt.Sprintf("backend unreachable; %d changes pending", rt.Sync.PendingCount()), 1)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "applied %d, retrying %d, dropped %d\n",
					res.Applied, len(res.Retried), len(res.Dropped))
				for _, ch := range res.Dropped {
					fmt.Fprintf(c.App.Writer, "dropped %s %s: %s\n", ch.Kind, ch.TargetItemID(), ch.LastError)
				}
				return nil
			})
		},
	}
}

func pendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "list changes waiting to be synced",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			rt, err := app.Build(cfg, app.BuildOptions{Offline: true, LogFallback: c.App.ErrWriter})
			if err != nil {
				return err
			}
			defer rt.Close()
			printPending(c.App.Writer, rt.Sync.PendingChanges())
			return nil
		},
	}
}

func logsCommand() *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "print the tail of the shopfront log file",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "lines", Aliases: []string{"n"}, Value: 50, Usage: "lines to show, 0 for all"},
			&cli.StringFlag{Name: "level", Usage: "minimum level (debug, info, warn, error)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.Log.File == "" {
				return cli.Exit("logs: log.file is not set", 1)
			}
			lines, err := logtail.Read(cfg.Log.File, c.Int("lines"))
			if err != nil {
				return err
			}
			if v := c.String("level"); v != "" {
				threshold, err := logrus.ParseLevel(v)
				if err != nil {
					return cli.Exit(fmt.Sprintf("logs: %v", err), 2)
				}
				lines = logtail.Filter(lines, threshold)
			}
			for _, line := range lines {
				fmt.Fprintln(c.App.Writer, line)
			}
			return nil
		},
	}
}

func mockServerCommand() *cli.Command {
	return &cli.Command{
		Name:  "mock-server",
		Usage: "serve the storefront API from memory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (default mock.addr)"},
			&cli.StringFlag{Name: "seed", Usage: "JSON fixture with products and cart items"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			addr := cfg.Mock.Addr
			if v := c.String("addr"); v != "" {
				addr = v
			}
			seedFile := cfg.Mock.SeedFile
			if v := c.String("seed"); v != "" {
				seedFile = v
			}

			var seed *mockapi.Seed
			if seedFile != "" {
				if seed, err = mockapi.LoadSeed(seedFile); err != nil {
					return err
				}
			}

			logger := logrus.New()
			logger.SetOutput(c.App.ErrWriter)
			if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
				logger.SetLevel(level)
			}
			return serveMock(c.Context, addr, mockapi.New(seed, logger), logger)
		},
	}
}

// serveMock runs the mock API until ctx is cancelled.
func serveMock(ctx context.Context, addr string, backend *mockapi.Server, logger logrus.FieldLogger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: backend.Handler(), ReadHeaderTimeout: 5 * time.Second}
	logger.WithField("addr", ln.Addr().String()).Info("mock storefront API listening on /api/v1")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func findProduct(ctx context.Context, s *cartsync.Synchronizer, sku string) (cartapi.Product, bool) {
	products, _ := s.Products(ctx)
	for _, p := range products {
		if p.SKU == sku {
			return p, true
		}
	}
	return cartapi.Product{}, false
}

// report prints the cart after a mutation. Network failures were queued by
// the synchronizer, so they are warnings rather than errors.
func report(c *cli.Context, items []cartapi.CartItem, err error) error {
	switch {
	case err == nil:
	case cartapi.IsNetworkError(err) || errors.Is(err, cartapi.ErrClearFailed):
		fmt.Fprintf(c.App.ErrWriter, "saved locally, will sync later: %v\n", err)
	default:
		return err
	}
	printCart(c.App.Writer, items)
	return nil
}

func printCart(w io.Writer, items []cartapi.CartItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return
	}
	rows := make([][]string, 0, len(items))
	total := 0.0
	for _, item := range items {
		rows = append(rows, []string{item.ItemID, item.Name, strconv.Itoa(item.Quantity), price(item.Subtotal())})
		total += item.Subtotal()
	}
	printTable(w, []string{"ITEM", "NAME", "QTY", "SUBTOTAL"}, rows)
	fmt.Fprintf(w, "total %s\n", price(total))
}

func printPending(w io.Writer, changes []pending.Change) {
	if len(changes) == 0 {
		fmt.Fprintln(w, "no pending changes")
		return
	}
	rows := make([][]string, 0, len(changes))
	for _, ch := range changes {
		rows = append(rows, []string{
			ch.ID,
			string(ch.Kind),
			ch.TargetItemID(),
			strconv.Itoa(ch.RetryCount),
			ch.CreatedAt.Local().Format(time.DateTime),
			ch.LastError,
		})
	}
	printTable(w, []string{"ID", "KIND", "ITEM", "RETRIES", "QUEUED", "LAST ERROR"}, rows)
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}

func price(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
