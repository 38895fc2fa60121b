package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/scheduler"
	"github.com/wonny/wuxing-quant/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

이 명령어는:
- 스케줄러 데몬 시작
- 등록된 작업 조회
- 작업 즉시 실행

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/quant scheduler start --db
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run daily_signal`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업 (TIMEZONE 기준):
- data_collection: COLLECT_SCHEDULE (기본 평일 18:00, 최근 일봉 증분 수집)
- daily_signal: SIGNAL_SCHEDULE (기본 매일 00:05, 오늘 시그널 저장)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerCSVDir string
	schedulerUseDB  bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().StringVar(&schedulerCSVDir, "csv-dir", "", "CSV 일봉 디렉토리")
	schedulerCmd.PersistentFlags().BoolVar(&schedulerUseDB, "db", false, "PostgreSQL 사용 (bars, 시그널 저장)")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Wuxing Quant Scheduler ===")
	fmt.Println()

	sched, a, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	sched.Start()

	fmt.Println("✅ Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, a, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, a, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	fmt.Printf("Running job: %s\n", jobName)

	result, err := sched.RunJobSync(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %s: %s", jobName, result.Duration, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}

	PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()

	fmt.Println("\nRegistered jobs:")
	widths := []int{16, 16, 20}
	PrintTableHeader([]string{"Job", "Schedule", "Next Run"}, widths)
	for _, name := range sched.GetAllJobs() {
		stat := stats[name]
		next := "-"
		if stat.NextRun != nil {
			next = stat.NextRun.Format("2006-01-02 15:04:05")
		}
		PrintTableRow([]string{name, stat.Schedule, next}, widths)
	}
}

func initScheduler(cmd *cobra.Command) (*scheduler.Scheduler, *app, error) {
	// 1. Dependencies
	a, err := newApp(cmd.Context(), appOptions{csvDir: schedulerCSVDir, useDB: schedulerUseDB})
	if err != nil {
		return nil, nil, err
	}

	// 2. Create scheduler in the bar timezone
	sched := scheduler.New(a.log, scheduler.WithLocation(a.location))

	// 3. Register jobs
	var signalRepo contracts.SignalRepository
	if repo := a.signalRepo(); repo != nil {
		signalRepo = repo
	}

	collectJob := jobs.NewDataCollectionJob(
		a.collector(nil),
		a.cfg.Signal.Symbols,
		a.cfg.Collect.Schedule,
		a.cfg.Collect.LookbackDays,
		a.cfg.Collect.Workers,
		a.location,
		a.log,
	)
	signalJob := jobs.NewDailySignalJob(
		a.signaler(),
		signalRepo,
		a.cache(),
		a.cfg.Signal.Symbols,
		a.cfg.Signal.Schedule,
		a.location,
		a.log,
	)

	for _, job := range []scheduler.Job{collectJob, signalJob} {
		if err := sched.AddJob(job); err != nil {
			a.Close()
			return nil, nil, fmt.Errorf("add job %s: %w", job.Name(), err)
		}
	}

	return sched, a, nil
}
