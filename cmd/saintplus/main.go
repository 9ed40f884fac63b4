package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"saintplus-client/internal/account"
	"saintplus-client/internal/bootstrap"
	"saintplus-client/internal/courses"
	"saintplus-client/internal/events"
	"saintplus-client/internal/gateway"
	"saintplus-client/internal/ingestion"
	"saintplus-client/internal/recommendations"
	"saintplus-client/internal/shared/config"
	"saintplus-client/internal/shared/metrics"
	"saintplus-client/internal/shared/telemetry"
)

const usage = `usage: saintplus [-metrics] <command> [flags]

commands:
  register   -username -password [-nickname] [-email]
  login      -username -password
  logout
  majors     -major1 [-major2] [-major3]
  upload     -file [-major1] [-major2] [-major3] [-retry]
  recommend  [-semester 0-4] [-prompt text] [-major code]
  saved
  save       -code -name [-target 2025-1]
  unsave     -code
  stats      -code

-metrics prints the counters recorded by the command after it finishes.
upload -retry resumes a failed transfer or notify step once, reusing the
issued storage key; without it a failed upload stops and reports the step.
`

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitAuth  = 3
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain returns the exit code so deferred cleanup runs before exit.
func realMain(args []string) int {
	global := flag.NewFlagSet("saintplus", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	dumpMetrics := global.Bool("metrics", false, "print recorded metrics after the command")
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() < 1 {
		global.Usage()
		return exitUsage
	}
	cmd, cmdArgs := global.Arg(0), global.Args()[1:]

	cfg := config.Load()
	flush, err := telemetry.Init(telemetry.LogOptions{Level: cfg.LogLevel, File: cfg.LogFile, Console: nopSyncer{}})
	if err != nil {
		color.Red("logger init failed: %v", err)
		return exitError
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		color.Red("startup failed: %v", err)
		return exitError
	}
	defer func() {
		if err := app.Close(); err != nil {
			telemetry.Warn("cli.close_failed", map[string]any{"err": err})
		}
	}()

	app.Gateway.OnSessionExpired(func(events.SessionExpired) {
		color.Yellow("세션이 만료되었습니다. 다시 로그인해 주세요.")
	})

	err = run(ctx, app, cmd, cmdArgs)
	if *dumpMetrics {
		fmt.Print(metrics.Render())
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUnknownCommand):
		fmt.Fprint(os.Stderr, usage)
		return exitUsage
	case errors.Is(err, gateway.ErrAuthorizationExpired), errors.Is(err, gateway.ErrUnauthorized):
		color.Red("%s: %v", cmd, err)
		return exitAuth
	default:
		color.Red("%s: %v", cmd, err)
		return exitError
	}
}

var errUnknownCommand = errors.New("unknown command")

func run(ctx context.Context, app *bootstrap.App, cmd string, args []string) error {
	switch cmd {
	case "register":
		return register(ctx, app, args)
	case "login":
		return login(ctx, app, args)
	case "logout":
		if err := app.Account.Logout(ctx); err != nil {
			return err
		}
		color.Green("로그아웃되었습니다.")
		return nil
	case "majors":
		return updateMajors(ctx, app, args)
	case "upload":
		return upload(ctx, app, args)
	case "recommend":
		return recommend(ctx, app, args)
	case "saved":
		return listSaved(ctx, app)
	case "save":
		return saveCourse(ctx, app, args)
	case "unsave":
		return unsaveCourse(ctx, app, args)
	case "stats":
		return courseStats(ctx, app, args)
	default:
		return fmt.Errorf("%w %q", errUnknownCommand, cmd)
	}
}

func register(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var reg account.Registration
	fs.StringVar(&reg.Username, "username", "", "login id")
	fs.StringVar(&reg.Password, "password", "", "password")
	fs.StringVar(&reg.Nickname, "nickname", "", "display name")
	fs.StringVar(&reg.Email, "email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.Account.Register(ctx, reg); err != nil {
		return err
	}
	color.Green("회원가입이 완료되었습니다: %s", reg.Username)
	return nil
}

func login(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	var creds account.Credentials
	fs.StringVar(&creds.Username, "username", "", "login id")
	fs.StringVar(&creds.Password, "password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := app.Account.Login(ctx, creds)
	if err != nil {
		return err
	}
	color.Green("%s님, 환영합니다.", s.Principal.DisplayName)
	return nil
}

func updateMajors(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("majors", flag.ContinueOnError)
	var m account.Majors
	fs.StringVar(&m.Major1, "major1", "", "primary major")
	fs.StringVar(&m.Major2, "major2", "", "second major")
	fs.StringVar(&m.Major3, "major3", "", "third major")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.Account.UpdateMajors(ctx, m); err != nil {
		return err
	}
	color.Green("전공 정보가 저장되었습니다.")
	return nil
}

func upload(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	path := fs.String("file", "", "transcript file (pdf, docx, txt)")
	var majors ingestion.Majors
	fs.StringVar(&majors.Primary, "major1", "", "primary major; defaults to the first extracted major")
	fs.StringVar(&majors.Secondary, "major2", "", "second major")
	fs.StringVar(&majors.Tertiary, "major3", "", "third major")
	retry := fs.Bool("retry", false, "resume a failed transfer or notify step once")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		return errors.New("-file is required")
	}
	content, err := os.ReadFile(*path)
	if err != nil {
		return err
	}

	stop := watchStages(ctx, app.Bus)
	defer stop()

	if _, err := app.Ingestion.SelectFile(ingestion.SourceFile{Name: filepath.Base(*path), Content: content}); err != nil {
		return err
	}
	job, err := app.Ingestion.BeginExtraction(ctx)
	if err != nil {
		return err
	}
	if len(job.ExtractedMajors) > 0 {
		color.Cyan("추출된 전공: %v", job.ExtractedMajors)
	}
	if majors.Primary == "" {
		if len(job.ExtractedMajors) == 0 {
			return errors.New("no majors found in the transcript; pass -major1")
		}
		majors.Primary = job.ExtractedMajors[0]
		if majors.Secondary == "" && len(job.ExtractedMajors) > 1 {
			majors.Secondary = job.ExtractedMajors[1]
		}
		if majors.Tertiary == "" && len(job.ExtractedMajors) > 2 {
			majors.Tertiary = job.ExtractedMajors[2]
		}
	}

	job, err = app.Ingestion.ConfirmMajors(ctx, majors)
	var legErr *ingestion.LegError
	if errors.As(err, &legErr) {
		color.Yellow("%s 단계에서 실패했습니다: %v", legErr.Leg, legErr.Cause)
		if *retry && legErr.Leg != ingestion.LegURL {
			job, err = app.Ingestion.Retry(ctx)
		}
	}
	if err != nil {
		return err
	}
	color.Green("성적표 업로드 완료 (%s)", job.StorageKey)
	return nil
}

func watchStages(ctx context.Context, bus *events.Bus) func() {
	ctx, cancel := context.WithCancel(ctx)
	err := events.Listen(ctx, bus, events.TopicIngestionStage, func(evt events.IngestionStage) {
		telemetry.Debug("cli.stage", map[string]any{"job_id": evt.JobID, "stage": evt.Stage})
	})
	if err != nil {
		telemetry.Warn("cli.stage_listen_failed", map[string]any{"err": err})
	}
	return cancel
}

func recommend(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	semester := fs.Int("semester", 0, "0 all, 1 spring, 2 fall, 3 summer, 4 winter")
	prompt := fs.String("prompt", "", "interests for AI recommendations")
	major := fs.String("major", "", "major code for AI recommendations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stats, err := app.Recommendations.FetchStatistical(ctx, *semester)
	if err != nil && !errors.Is(err, recommendations.ErrSuperseded) {
		color.Red("통계 추천을 불러오지 못했습니다: %v", err)
	}
	printSlice(fmt.Sprintf("통계 기반 추천 (%s)", recommendations.SemesterLabel(*semester)), stats)

	if *prompt == "" {
		return err
	}
	ai, aiErr := app.Recommendations.FetchAI(ctx, *prompt, *major)
	if aiErr != nil && !errors.Is(aiErr, recommendations.ErrSuperseded) {
		color.Red("AI 추천을 불러오지 못했습니다: %v", aiErr)
	}
	printSlice("AI 추천", ai)
	return errors.Join(err, aiErr)
}

func printSlice(title string, s recommendations.Slice) {
	color.Cyan("\n%s", title)
	if len(s.Results) == 0 {
		fmt.Println("  추천 결과가 없습니다.")
		return
	}
	for i, r := range s.Results {
		fmt.Printf("  %2d. %-10s %-24s %s\n", i+1, r.Course.DisplayCode(), r.Course.DisplayName(), r.ScoreText())
	}
}

func listSaved(ctx context.Context, app *bootstrap.App) error {
	saved, err := app.Courses.Saved(ctx)
	if err != nil {
		return err
	}
	color.Cyan("담은 과목 (%d)", len(saved))
	for _, c := range saved {
		target := c.TargetSemester
		if target == "" {
			target = "-"
		}
		fmt.Printf("  %-10s %-24s %s\n", c.Code, c.Name, target)
	}
	return nil
}

func saveCourse(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	var p courses.Plan
	fs.StringVar(&p.Code, "code", "", "course code")
	fs.StringVar(&p.Name, "name", "", "course name")
	fs.StringVar(&p.TargetSemester, "target", "", "planned semester, e.g. 2025-1")
	if err := fs.Parse(args); err != nil {
		return err
	}

	saved, err := app.Courses.Save(ctx, p)
	if err != nil {
		return err
	}
	color.Green("장바구니에 담았습니다: %s %s", saved.Code, saved.Name)
	return nil
}

func unsaveCourse(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("unsave", flag.ContinueOnError)
	code := fs.String("code", "", "course code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.Courses.Remove(ctx, *code); err != nil {
		return err
	}
	color.Green("장바구니에서 삭제했습니다: %s", *code)
	return nil
}

func courseStats(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	code := fs.String("code", "", "subject code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stats, err := app.Courses.Stats(ctx, *code)
	if err != nil {
		return err
	}
	color.Cyan("%s 수강 학기 분포 (총 %d명)", *code, stats.Total())
	for i, label := range stats.Labels {
		fmt.Printf("  %-8s %d\n", label, stats.Values[i])
	}
	return nil
}

// nopSyncer keeps JSON logs off the terminal; LogFile still receives them.
type nopSyncer struct{}

func (nopSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (nopSyncer) Sync() error                 { return nil }
