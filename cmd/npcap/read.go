package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofiworker/npcap/glog"
	"github.com/sofiworker/npcap/gnet/flow"
	"github.com/sofiworker/npcap/gnet/flowstore"
	"github.com/sofiworker/npcap/gnet/layers"
	"github.com/sofiworker/npcap/gnet/packet"
	"github.com/sofiworker/npcap/gnet/session"
)

type readOptions struct {
	linkType string
	frames   bool
}

func newReadCmd(global *globalOptions) *cobra.Command {
	opts := &readOptions{}
	cmd := &cobra.Command{
		Use:   "read [file]",
		Short: "Decode a pcap or pcapng file and summarize its TCP flows",
		Long: `Decode every packet of a capture file, feed TCP segments to the flow
tracker and print a YAML summary of decode counters and flows.

Examples:
  npcap read dump.pcap                      # summary only
  npcap read dump.pcapng --frames           # print each decoded frame first
  npcap read raw.pcap --link-type raw       # ignore the link type in the file header
  npcap read -c npcap.yaml                  # take the input path from the config file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loader, err := loadConfig(global.configFile, cmd.Flags(), func(c *appConfig) {
				glog.SetLevel(c.Log.Level)
				glog.Infof("log level set to %s", c.Log.Level)
			})
			if err != nil {
				return err
			}
			defer loader.Close()

			if len(args) == 1 {
				cfg.Input = args[0]
			}
			if cmd.Flags().Changed("link-type") {
				lt, err := layers.ParseLinkType(opts.linkType)
				if err != nil {
					return err
				}
				cfg.LinkType = &lt
			}
			if err := cfg.Log.apply(); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			defer glog.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRead(ctx, cfg, opts.frames, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.linkType, "link-type", "", "override the link type of the file (ethernet, raw, null, linux_sll)")
	cmd.Flags().BoolVar(&opts.frames, "frames", false, "print every decoded frame")
	cmd.Flags().Int("limit", 0, "stop after this many packets (0 reads the whole file)")
	cmd.Flags().Bool("no-copy", false, "let decoded payloads alias the read buffer")
	cmd.Flags().Bool("dns", true, "decode DNS on UDP port 53")
	cmd.Flags().Int("max-flows", 0, "maximum tracked flows before the least recent is evicted (0 is unbounded)")
	cmd.Flags().String("db", "", "write every flow to this sqlite database")
	return cmd
}

// runRead 处理一个捕获文件并把摘要写到 out。
func runRead(ctx context.Context, cfg *appConfig, frames bool, out io.Writer) error {
	if cfg.Input == "" {
		return errors.New("no input file: pass one as argument or set input in the config")
	}
	src, closeFn, err := packet.Open(cfg.Input)
	if err != nil {
		return err
	}
	defer closeFn()
	if cfg.LinkType != nil {
		src = packet.WithLinkType(src, *cfg.LinkType)
	}

	log := glog.Named("npcap")
	rep := newReport(log)
	tracker := flow.NewTracker(
		flow.WithMaxFlows(cfg.Tracker.MaxFlows),
		flow.WithLogger(log.Named("flow")),
		flow.WithObserver(rep),
	)

	var store *flowstore.Store
	if cfg.Store.Path != "" {
		var closeStore func(context.Context) error
		store, closeStore, err = openStore(ctx, cfg.Store.Path, cfg.Store.Batch)
		if err != nil {
			return err
		}
		defer func() {
			// ctx 可能已被信号取消，落库仍要完成
			if err := closeStore(context.WithoutCancel(ctx)); err != nil {
				log.Error("close flow store", "path", cfg.Store.Path, "error", err)
			}
		}()
		tracker.Subscribe(store)
	}

	n := 0
	opts := []session.Option{
		session.WithTracker(tracker),
		session.WithDecoderOptions(cfg.Decode.options()...),
		session.WithLogger(log.Named("session")),
		session.WithLimit(cfg.Limit),
	}
	if frames {
		opts = append(opts,
			session.WithFrameHandler(func(p *packet.Packet, f *layers.Frame) {
				n++
				fmt.Fprintf(out, "%d %s %s\n", n, p.Timestamp.UTC().Format(time.RFC3339Nano), f)
			}),
			session.WithErrorHandler(func(p *packet.Packet, err error) {
				n++
				fmt.Fprintf(out, "%d %s error: %v\n", n, p.Timestamp.UTC().Format(time.RFC3339Nano), err)
			}),
		)
	}

	s := session.New(src, opts...)
	stats, err := s.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if store != nil {
		for _, f := range tracker.Flows() {
			store.Add(flowstore.NewRecord(f, false))
		}
		if err := store.Flush(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		rep.stored = store.Written()
	}
	return rep.write(out, cfg.Input, src.LinkType(), stats, tracker.Flows())
}
