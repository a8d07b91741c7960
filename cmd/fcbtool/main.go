package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	fcb "fcb-go"
	"fcb-go/config"
	"fcb-go/data"
	fcbrpc "fcb-go/rpc"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func newApp() *cli.App {
	app := &cli.App{
		Name:  "fcbtool",
		Usage: "Inspect and modify a flash circular buffer image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, TakesFile: true, Usage: "Path to the YAML image layout", EnvVars: []string{"FCB_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Usage: "Override log level (panic, fatal, error, warn, info, debug, trace)", EnvVars: []string{"LOG_LEVEL"}},
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:  "format",
			Usage: "Erase every entry and start over with an empty buffer",
			Action: withFCB(func(c *cli.Context, f *fcb.FCB) error {
				return f.Clear()
			}),
		},
		{
			Name:      "append",
			Usage:     "Append each argument as one entry",
			ArgsUsage: "ENTRY...",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "file", TakesFile: true, Usage: "Append the content of a file as one entry"},
			},
			Action: withFCB(func(c *cli.Context, f *fcb.FCB) error {
				entries := make([][]byte, 0, c.NArg()+1)
				for _, arg := range c.Args().Slice() {
					entries = append(entries, []byte(arg))
				}
				if path := c.String("file"); path != "" {
					buf, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					entries = append(entries, buf)
				}
				if len(entries) == 0 {
					return errors.New("nothing to append")
				}
				for _, p := range entries {
					loc, err := appendEntry(f, p)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, loc)
				}
				return nil
			}),
		},
		{
			Name:  "walk",
			Usage: "Print entries from the oldest to the newest",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "sector", Value: fcb.Oldest, Usage: "Only walk this sector, -1 walks the whole buffer"},
			},
			Action: withFCB(func(c *cli.Context, f *fcb.FCB) error {
				var readErr error
				err := f.Walk(c.Int("sector"), func(loc data.EntryLocation) bool {
					if readErr = printEntry(c, f, loc); readErr != nil {
						return false
					}
					return true
				})
				if err != nil {
					return err
				}
				return readErr
			}),
		},
		{
			Name:  "prev",
			Usage: "Print entries from the newest backwards",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "count", Value: 1, Usage: "Number of entries to print"},
			},
			Action: withFCB(func(c *cli.Context, f *fcb.FCB) error {
				var cur *data.EntryLocation
				for i := 0; i < c.Int("count"); i++ {
					loc, err := f.GetPrev(cur)
					if errors.Is(err, fcb.ErrNoPrev) {
						return nil
					}
					if err != nil {
						return err
					}
					if err := printEntry(c, f, loc); err != nil {
						return err
					}
					cur = &loc
				}
				return nil
			}),
		},
		{
			Name:      "last",
			Usage:     "Print the newest N entries, oldest first",
			ArgsUsage: "N",
			Action: withFCB(func(c *cli.Context, f *fcb.FCB) error {
				n, err := strconv.Atoi(c.Args().First())
				if err != nil {
					return errors.Wrap(err, "entry count")
				}
				loc, err := f.OffsetLastN(n)
				if errors.Is(err, fcb.ErrNoEntry) {
					return nil
				}
				for err == nil {
					if err = printEntry(c, f, loc); err != nil {
						return err
					}
					loc, err = f.GetNext(&loc)
				}
				if errors.Is(err, fcb.ErrNoEntry) {
					return nil
				}
				return err
			}),
		},
		{
			Name:  "rotate",
			Usage: "Erase the oldest sector",
			Action: withFCB(func(c *cli.Context, f *fcb.FCB) error {
				return f.Rotate()
			}),
		},
		{
			Name:  "scratch",
			Usage: "Take the next free sector, scratch included, as the active sector",
			Action: withFCB(func(c *cli.Context, f *fcb.FCB) error {
				return f.AppendToScratch()
			}),
		},
		{
			Name:  "info",
			Usage: "Print the buffer state and per-sector usage",
			Action: withFCB(func(c *cli.Context, f *fcb.FCB) error {
				return printInfo(c, f)
			}),
		},
		{
			Name:  "serve",
			Usage: "Serve the buffer over net/rpc and expose prometheus metrics",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "rpc-addr", Usage: "Override rpc listen address"},
				&cli.StringFlag{Name: "metrics-addr", Usage: "Override metrics listen address"},
			},
			Action: serve,
		},
	}
	return app
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(level)
	return cfg, nil
}

// withFCB 按配置打开缓冲区，执行 fn 后关闭
func withFCB(fn func(c *cli.Context, f *fcb.FCB) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		inst, err := openInstance(cfg, logrus.StandardLogger(), nil)
		if err != nil {
			return err
		}
		if err := fn(c, inst.fcb); err != nil {
			_ = inst.Close()
			return err
		}
		return inst.Close()
	}
}

func appendEntry(f *fcb.FCB, p []byte) (data.EntryLocation, error) {
	loc, err := f.Append(len(p))
	if err != nil {
		return loc, err
	}
	if err := f.Write(loc, 0, p); err != nil {
		return loc, err
	}
	return loc, f.Finish(loc)
}

func printEntry(c *cli.Context, f *fcb.FCB, loc data.EntryLocation) error {
	buf, err := f.ReadEntry(loc)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %q\n", loc, buf)
	return nil
}

func printInfo(c *cli.Context, f *fcb.FCB) error {
	st := f.State()
	w := c.App.Writer
	fmt.Fprintf(w, "sectors=%d total=%d free=%d empty=%t\n", f.SectorCount(), f.TotalSize(), f.FreeSectorCount(), f.IsEmpty())
	fmt.Fprintf(w, "active=%d id=%d oldest=%d offset=%#x entries=%d\n",
		st.ActiveSector, st.ActiveID, st.OldestSector, st.NextOffset, st.ActiveEntries)
	for i := 0; i < f.SectorCount(); i++ {
		desc, err := f.SectorInfo(i)
		if err != nil {
			return err
		}
		count, bytes, err := f.AreaInfo(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %3d area=%d off=%#08x size=%#x state=%-7s id=%5d entries=%d bytes=%d\n",
			i, desc.Area.ID, desc.Off, desc.Size, data.SectorStateName(desc.State), desc.ID, count, bytes)
	}
	return nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	rpcAddr, metricsAddr := cfg.RPCAddr, cfg.MetricsAddr
	if addr := c.String("rpc-addr"); addr != "" {
		rpcAddr = addr
	}
	if addr := c.String("metrics-addr"); addr != "" {
		metricsAddr = addr
	}

	reg := prometheus.NewRegistry()
	inst, err := openInstance(cfg, logrus.StandardLogger(), reg)
	if err != nil {
		return err
	}
	defer inst.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fcbrpc.Serve(gctx, rpcAddr, inst.fcb, logrus.StandardLogger())
	})
	g.Go(func() error {
		logrus.WithField("addr", metricsAddr).Info("metrics server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
