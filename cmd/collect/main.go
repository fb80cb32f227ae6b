package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/LJTian/HarareMetro/internal/app"
	"github.com/LJTian/HarareMetro/internal/collector"
	"github.com/LJTian/HarareMetro/internal/config"
	"github.com/LJTian/HarareMetro/internal/logging"
	"github.com/spf13/cobra"
)

// 命令行入口：手动执行一轮采集、查看新闻源和当前快照
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "collect",
		Short:        "Harare Metro feed collector",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newSourcesCmd(), newShowCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		only   []string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch every configured source once and overwrite latest_news",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			reg, err := selectSources(a.Registry, only)
			if err != nil {
				return err
			}

			u := a.NewUpdater(reg, a.Snapshot)
			if dryRun {
				u = a.NewDryRunUpdater(reg)
			}

			res, err := u.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringSliceVar(&only, "source", nil, "only fetch the named source(s)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not write latest_news")
	return cmd
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured news sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := collector.LoadRegistry(config.Load().SourcesFile)
			if err != nil {
				return err
			}
			return printJSON(cmd, reg.Sources())
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current latest_news snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Snapshot.Latest(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}
}

// bootstrap 构建依赖；dryRun 时不连接 Postgres，避免建表和写入 channel
func bootstrap(dryRun bool) (*app.App, error) {
	cfg := config.Load()
	if dryRun {
		cfg.PostgresDSN = ""
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.New(cfg, logger)
}

// selectSources 按名称挑出子集，保持配置中的顺序
func selectSources(reg *collector.Registry, names []string) (*collector.Registry, error) {
	if len(names) == 0 {
		return reg, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := reg.Lookup(n); !ok {
			return nil, fmt.Errorf("unknown source %q", n)
		}
		want[n] = true
	}
	var list []collector.Source
	for _, src := range reg.Sources() {
		if want[src.Name] {
			list = append(list, src)
		}
	}
	return collector.NewRegistry(list)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
