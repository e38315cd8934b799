package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/api"
	"github.com/RecoveryAshes/InsightCrawler/internal/config"
	"github.com/RecoveryAshes/InsightCrawler/internal/core"
	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string // 自定义HTTP请求头
	validateConfig bool     // 验证配置文件

	// 子命令参数
	targetID     int64
	historyLimit int
	targetsFile  string
	serveAddr    string
	serveAPI     bool
	jsonOutput   bool
	noReport     bool
	showProgress bool
)

// appConfig 在 PersistentPreRunE 中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "insightcrawler",
	Short: "定时新闻文章爬取服务",
	Long: `InsightCrawler - 按cron计划定时爬取新闻列表页并去重入库

支持:
  • 静态爬取 (HTTP + 选择器) 和动态爬取 (无头浏览器渲染)
  • 按页码参数自动翻页
  • 按 url+标题 去重
  • 六段式cron定时调度 (秒 分 时 日 月 周)
  • 自定义HTTP请求头和User-Agent轮换

示例:
  # 导入目标定义并启动调度服务
  insightcrawler targets import -f configs/targets.yaml
  insightcrawler serve --api

  # 手动执行单个目标 / 全部目标
  insightcrawler run --target 1
  insightcrawler run-all

  # 自定义请求头
  insightcrawler run -t 1 -H "Authorization: Bearer token"

  # 验证配置文件
  insightcrawler --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig = config

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		if verbose {
			logConfig.Level = "debug"
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateConfig {
			return runValidateConfig()
		}
		return cmd.Help()
	},
}

// runValidateConfig 校验配置、请求头和目标定义文件
func runValidateConfig() error {
	utils.Info("🔍 验证配置...")

	headerManager, err := core.NewHeaderManager(appConfig.Crawler.Headers, headers, appConfig.Crawler.UserAgents)
	if err != nil {
		return fmt.Errorf("HTTP头部验证失败: %w", err)
	}
	if safe := headerManager.SafeHeaders(); safe != "" {
		utils.Infof("自定义HTTP头部: %s", safe)
	}

	path := targetsFileOrDefault()
	targets, err := config.NewTargetConfigLoader(path).LoadTargets()
	if err != nil {
		return fmt.Errorf("目标定义验证失败: %w", err)
	}
	for _, t := range targets {
		if _, err := core.ParseCron(t.CronExpression); err != nil {
			return fmt.Errorf("目标 %s 的cron表达式无效 %q: %w", t.Name, t.CronExpression, err)
		}
	}

	utils.Infof("✅ 配置验证通过! 目标定义 %s 包含 %d 个目标", path, len(targets))
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动调度服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		enableAPI := cfg.Server.Enabled || serveAPI
		if enableAPI {
			if err := ValidateAddr(addr); err != nil {
				return err
			}
		}

		ctx, cancel := signalContext()
		defer cancel()

		rt, err := newRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		if cfg.Targets.SyncOnStart {
			if _, err := rt.syncTargets(ctx, targetsFileOrDefault()); err != nil {
				return fmt.Errorf("导入目标定义失败: %w", err)
			}
		}

		loc, err := cfg.SchedulerLocation()
		if err != nil {
			return err
		}
		pool := core.NewWorkerPool(cfg.Scheduler.Workers)
		scheduler := core.NewCrawlScheduler(rt.store, rt.orchestrator, pool, core.WithLocation(loc))

		if cfg.Scheduler.Enabled {
			if _, err := scheduler.Refresh(ctx); err != nil {
				return fmt.Errorf("初始化调度失败: %w", err)
			}
			scheduler.Start()
		} else {
			utils.Warn("调度已在配置中关闭, 只能通过管理接口手动触发")
		}

		errCh := make(chan error, 1)
		if enableAPI {
			server := api.NewServer(scheduler, rt.orchestrator, rt.store, pool, rt.browserStatus)
			go func() { errCh <- server.ListenAndServe(ctx, addr) }()
		}

		select {
		case <-ctx.Done():
		case err = <-errCh:
			if err != nil {
				utils.Errorf("管理接口异常退出: %v", err)
			}
			cancel()
		}

		<-scheduler.Stop().Done()
		if err := pool.Shutdown(30 * time.Second); err != nil {
			utils.Warnf("%v", err)
		}
		utils.Info("✨ 服务已停止")
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "立即执行单个目标",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateTargetID(targetID); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		rt, err := newRuntime(ctx, appConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		outcome, err := rt.orchestrator.RunByID(ctx, targetID)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(outcome)
		}

		fmt.Println("==================================================")
		fmt.Printf("📰 %s (#%d)\n", outcome.TargetName, outcome.TargetID)
		fmt.Println("==================================================")
		fmt.Printf("状态: %s (尝试 %d 次)\n", outcome.Status, outcome.Attempts)
		fmt.Printf("发现文章: %d, 新增: %d\n", outcome.ArticlesFound, outcome.ArticlesNew)
		fmt.Printf("耗时: %dms\n", outcome.Result.DurationMs)
		if outcome.Result.ErrorMessage != "" {
			fmt.Printf("错误: %s\n", outcome.Result.ErrorMessage)
		}

		if outcome.Status == models.StatusFailed {
			return fmt.Errorf("目标 #%d 爬取失败", targetID)
		}
		return nil
	},
}

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "依次执行所有启用的目标",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		var bar *progressbar.ProgressBar
		progress := core.WithProgress(func(done, total int, outcome *models.CrawlOutcome) {
			if !showProgress {
				return
			}
			if bar == nil {
				bar = utils.NewProgressBar(total, "批量爬取")
			}
			_ = bar.Add(1)
		})

		rt, err := newRuntime(ctx, appConfig, progress)
		if err != nil {
			return err
		}
		defer rt.Close()

		summary, err := rt.orchestrator.RunAllEnabled(ctx)
		if err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Finish()
			fmt.Println()
		}

		utils.PrintBatchSummary(summary)

		if !noReport {
			path, err := utils.NewReporter(appConfig.Report.Dir).WriteBatchReport(summary)
			if err != nil {
				return err
			}
			utils.Infof("📄 报告已保存: %s", path)
		}

		if jsonOutput {
			return printJSON(summary)
		}
		return nil
	},
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "管理爬取目标",
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有目标",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		targets, err := st.ListTargets(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(targets)
		}

		fmt.Printf("%-4s %-20s %-8s %-8s %-18s %-8s %s\n", "ID", "名称", "类型", "启用", "CRON", "状态", "URL")
		for _, t := range targets {
			status := string(t.LastStatus)
			if status == "" {
				status = "-"
			}
			fmt.Printf("%-4d %-20s %-8s %-8t %-18s %-8s %s\n",
				t.ID, utils.TruncateRunes(t.Name, 20), t.CrawlType, t.Enabled, t.CronExpression, status, t.URL)
		}
		return nil
	},
}

var targetsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "从目标定义文件导入目标",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		rt := &runtime{config: appConfig, store: st}
		_, err = rt.syncTargets(cmd.Context(), targetsFileOrDefault())
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "查看目标的爬取历史",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateTargetID(targetID); err != nil {
			return err
		}
		if err := ValidateLimit(historyLimit); err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		history, err := st.ListHistory(cmd.Context(), targetID, historyLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(history)
		}

		for _, h := range history {
			line := fmt.Sprintf("%s  %-8s 发现 %-4d 新增 %-4d %6dms",
				h.ExecutedAt.Format("2006-01-02 15:04:05"), h.Status, h.ArticlesFound, h.ArticlesNew, h.DurationMs)
			if h.ErrorMessage != "" {
				line += "  " + utils.TruncateRunes(h.ErrorMessage, 80)
			}
			fmt.Println(line)
		}
		if len(history) == 0 {
			fmt.Println("暂无爬取历史")
		}
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "检测无头浏览器是否可用",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd.Context(), appConfig)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("InsightCrawler %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func targetsFileOrDefault() string {
	if targetsFile != "" {
		return targetsFile
	}
	return appConfig.Targets.File
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "以JSON格式输出结果")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")
	rootCmd.Flags().StringVarP(&targetsFile, "targets-file", "f", "", "目标定义文件路径")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "管理接口监听地址 (默认取配置 server.addr)")
	serveCmd.Flags().BoolVar(&serveAPI, "api", false, "启用管理接口")
	serveCmd.Flags().StringVarP(&targetsFile, "targets-file", "f", "", "启动时导入的目标定义文件")

	runCmd.Flags().Int64VarP(&targetID, "target", "t", 0, "目标ID")
	_ = runCmd.MarkFlagRequired("target")

	runAllCmd.Flags().BoolVar(&noReport, "no-report", false, "不保存JSON报告")
	runAllCmd.Flags().BoolVar(&showProgress, "progress", true, "显示进度条")

	targetsImportCmd.Flags().StringVarP(&targetsFile, "file", "f", "", "目标定义文件路径 (默认取配置 targets.file)")

	historyCmd.Flags().Int64VarP(&targetID, "target", "t", 0, "目标ID")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "显示条数")
	_ = historyCmd.MarkFlagRequired("target")

	// 添加子命令
	targetsCmd.AddCommand(targetsListCmd, targetsImportCmd)
	rootCmd.AddCommand(serveCmd, runCmd, runAllCmd, targetsCmd, historyCmd, probeCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
