package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/provider"
	"metal_price_tracker/internal/service"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "pricetracker",
		Usage:   "裸金属服务器竞品价格追踪",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径 (yaml)",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "rules",
				Usage:   "规则文件路径，覆盖内置规则",
				EnvVars: []string{config.EnvPrefix + "_RULES_FILE"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			updateCommand(),
			importCommand(),
			matchCommand(),
			cleanupCommand(),
			seedCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withDeps 加载配置并装配依赖后执行 fn
func withDeps(c *cli.Context, fn func(ctx context.Context, deps *Dependencies) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if rules := c.String("rules"); rules != "" {
		cfg.RulesFile = rules
	}

	ctx := c.Context
	deps, err := initDependencies(ctx, cfg)
	if err != nil {
		if errors.Is(err, provider.ErrMissingCredentials) {
			return cli.Exit(fmt.Sprintf("启动失败: %v", err), 1)
		}
		return err
	}
	defer deps.Close()
	return fn(ctx, deps)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ==================== serve ====================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "启动看板 API 与每日定时更新",
		Action: func(c *cli.Context) error {
			return withDeps(c, func(ctx context.Context, deps *Dependencies) error {
				return serve(deps)
			})
		},
	}
}

// ==================== update ====================

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "执行一次完整更新（快照、采集、变动检测、告警、匹配）",
		Action: func(c *cli.Context) error {
			return withDeps(c, func(ctx context.Context, deps *Dependencies) error {
				summary, err := deps.Tasks.RunNow(ctx, model.RunTriggerCLI)
				if summary != nil {
					_ = printJSON(summary)
				}
				if err != nil {
					return cli.Exit(fmt.Sprintf("更新失败: %v", err), 1)
				}
				deps.Log.Info("[CLI] 更新完成", "in_stock", service.FormatInStock(summary.InStock))
				return nil
			})
		},
	}
}

// ==================== import ====================

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "单独导入一个供应商、基准目录或全部",
		ArgsUsage: "<provider|reference|all>",
		Action: func(c *cli.Context) error {
			target := strings.ToLower(strings.TrimSpace(c.Args().First()))
			if target == "" {
				return cli.Exit("缺少导入目标: <provider|reference|all>", 1)
			}
			return withDeps(c, func(ctx context.Context, deps *Dependencies) error {
				pipeline := deps.Services.Pipeline
				switch target {
				case "reference":
					result, err := pipeline.ImportReference(ctx)
					if err != nil {
						return cli.Exit(fmt.Sprintf("导入基准目录失败: %v", err), 1)
					}
					return printJSON(result)
				case "all":
					results := map[string]interface{}{}
					ref, err := pipeline.ImportReference(ctx)
					if err != nil {
						return cli.Exit(fmt.Sprintf("导入基准目录失败: %v", err), 1)
					}
					results["reference"] = ref
					for _, competitor := range pipeline.Competitors() {
						res, err := pipeline.ImportOne(ctx, competitor)
						if err != nil {
							return cli.Exit(fmt.Sprintf("导入 %s 失败: %v", competitor, err), 1)
						}
						results[string(competitor)] = res
					}
					return printJSON(results)
				default:
					competitor, err := model.ParseCompetitor(target)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					res, err := pipeline.ImportOne(ctx, competitor)
					if err != nil {
						return cli.Exit(fmt.Sprintf("导入 %s 失败: %v", competitor, err), 1)
					}
					return printJSON(res)
				}
			})
		},
	}
}

// ==================== match / cleanup / seed ====================

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "重新生成全部比价",
		Action: func(c *cli.Context) error {
			return withDeps(c, func(ctx context.Context, deps *Dependencies) error {
				n, err := deps.Services.Matcher.Regenerate(ctx)
				if err != nil {
					return cli.Exit(fmt.Sprintf("匹配失败: %v", err), 1)
				}
				fmt.Printf("comparisons: %d\n", n)
				return nil
			})
		},
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "删除非重点区域的竞品及无产品的城市",
		Action: func(c *cli.Context) error {
			return withDeps(c, func(ctx context.Context, deps *Dependencies) error {
				result, err := deps.Services.Cleanup.Run(ctx)
				if err != nil {
					return cli.Exit(fmt.Sprintf("清理失败: %v", err), 1)
				}
				if _, err := deps.Services.Matcher.Regenerate(ctx); err != nil {
					return cli.Exit(fmt.Sprintf("匹配失败: %v", err), 1)
				}
				return printJSON(result)
			})
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "写入默认基准产品（已存在的跳过）",
		Action: func(c *cli.Context) error {
			return withDeps(c, func(ctx context.Context, deps *Dependencies) error {
				n, err := deps.Services.Reference.Seed(ctx)
				if err != nil {
					return cli.Exit(fmt.Sprintf("写入基准产品失败: %v", err), 1)
				}
				fmt.Printf("seeded: %d\n", n)
				return nil
			})
		},
	}
}
