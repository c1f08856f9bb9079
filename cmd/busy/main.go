// Command busy evaluates a BUSY build description, generates the
// toolchain-specific operation list, and runs it on a bounded worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/fatih/color"

	"github.com/busybuild/busy/internal/codegen"
	"github.com/busybuild/busy/internal/dispatch"
	"github.com/busybuild/busy/internal/freshness"
	"github.com/busybuild/busy/internal/manifest"
	"github.com/busybuild/busy/internal/merge"
	"github.com/busybuild/busy/internal/procadapter"
	"github.com/busybuild/busy/internal/reftable"
	"github.com/busybuild/busy/internal/report"
	"github.com/busybuild/busy/internal/resolve"
	"github.com/busybuild/busy/internal/session"
	"github.com/busybuild/busy/internal/toolchain"
)

var (
	// Version info — set by ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	red  = color.New(color.FgRed).SprintFunc()
	cyan = color.New(color.FgCyan).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "Print version information")
		helpFlag    = flag.Bool("help", false, "Show help")
		srcFlag     = flag.String("src", ".", "root source directory")
		buildFlag   = flag.String("build-dir", "build", "root build directory")
		modeFlag    = flag.String("mode", "debug", "build mode: debug, optimized, nonoptimized")
		tcFlag      = flag.String("toolchain", "", "toolchain: gcc, clang, msvc (auto-detected if empty)")
		osFlag      = flag.String("os", runtime.GOOS, "target OS: linux, macos, win32, unix")
		workersFlag = flag.Int("workers", runtime.NumCPU(), "worker pool size")
		stopFlag    = flag.Bool("stop-on-error", false, "stop dispatching new operations after the first failure")
		manifestFlag = flag.String("manifest", "", "load session config from a YAML manifest")
		paramsFlag  = flag.String("params", "", "parameter file overriding merged config (spec's parameter-file mini-language)")
		installFlag = flag.String("install-prefix", "", "copy exported Executable/Dll outputs here after linking")
	)
	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}
	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	command := flag.Arg(0)
	opts := buildOptions{
		src: *srcFlag, buildDir: *buildFlag, mode: *modeFlag, tc: *tcFlag, targetOS: *osFlag,
		workers: *workersFlag, stopOnError: *stopFlag, manifestPath: *manifestFlag,
		paramsPath: *paramsFlag, installPrefix: *installFlag,
	}
	switch command {
	case "build":
		opts.targets = flag.Args()[1:]
		os.Exit(runBuild(opts))
	case "clean":
		os.Exit(runClean(opts))
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("Error"), command)
		printHelp()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("busy %s (commit %s, built %s)\n", Version, Commit, BuildTime)
}

func printHelp() {
	fmt.Println(bold("busy") + " - a declarative build system")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  busy build [targets...]   evaluate BUSY files and build every declared product (target names are recorded but do not filter the build)")
	fmt.Println("  busy clean                remove generated outputs")
	fmt.Println()
	flag.PrintDefaults()
}

type buildOptions struct {
	src, buildDir, mode, tc, targetOS string
	workers                           int
	stopOnError                       bool
	manifestPath                      string
	paramsPath                        string
	installPrefix                     string
	targets                           []string
}

func runBuild(opts buildOptions) int {
	rep := report.New()

	sess, err := loadSession(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		return 1
	}

	table := reftable.New()
	resolver := resolve.New(table)
	if _, err := resolver.ResolveRoot(sess.RootSourceDir); err != nil {
		rep.ReportAll(&resolver.Errors)
		return 1
	}
	if resolver.Errors.HasErrors() {
		rep.ReportAll(&resolver.Errors)
	}

	merger := merge.New(table)
	instances, order, mergeErr := merger.MergeAll()
	if merger.Errors.HasErrors() {
		rep.ReportAll(&merger.Errors)
	}
	if mergeErr != nil {
		return 1
	}
	merger.ApplyParameters(sess.Parameters)

	gen := &codegen.Generator{
		Instances:     instances,
		Order:         order,
		Table:         table,
		BuildRoot:     filepath.Join(sess.RootBuildDir, string(sess.Mode)),
		Toolchain:     sess.Toolchain,
		OS:            sess.TargetOS,
		InstallPrefix: sess.InstallPrefix,
	}
	ops, err := gen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		return 1
	}

	oracle := freshness.New()
	adapter := &procadapter.Adapter{Toolchain: sess.Toolchain, OS: sess.TargetOS}
	events := make(chan dispatch.Event, 256)
	d := &dispatch.Dispatcher{
		Workers:     sess.Workers,
		Runner:      dispatch.AdapterRunner{Adapter: adapter},
		Oracle:      oracle,
		StopOnError: sess.StopOnError,
		Events:      events,
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	defer signal.Stop(sig)

	go drainEvents(events, rep)

	success := d.Run(ctx, ops)
	close(events)

	rep.Summary(success, os.Stdout)
	if success {
		return 0
	}
	return 1
}

func drainEvents(events <-chan dispatch.Event, rep *report.Reporter) {
	for ev := range events {
		switch ev.Kind {
		case dispatch.TaskStarted:
			rep.Infof("%s %s", cyan("entering"), ev.Operation.Cmd)
		case dispatch.ProcessResultEvent:
			if !ev.Result.Success {
				rep.Warnf("%s failed (exit %d): %s", ev.Operation.Cmd, ev.Result.ExitCode, joinLines(ev.Result.Stderr))
			}
		}
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += " | "
		}
		out += l
	}
	return out
}

func loadSession(opts buildOptions) (*session.Session, error) {
	if opts.manifestPath != "" {
		m, err := manifest.Load(opts.manifestPath)
		if err != nil {
			return nil, err
		}
		return m.ToSession()
	}

	targetOS := toolchain.OS(opts.targetOS)
	tc := toolchain.Toolchain(opts.tc)
	if tc == "" {
		detected, err := toolchain.Detect(targetOS, exec.LookPath)
		if err != nil {
			return nil, err
		}
		tc = detected
	}

	var params []session.Parameter
	if opts.paramsPath != "" {
		data, err := os.ReadFile(opts.paramsPath)
		if err != nil {
			return nil, err
		}
		params, err = session.ParseParameterFile(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", opts.paramsPath, err)
		}
	}

	return session.New(opts.src, opts.buildDir,
		session.WithMode(session.Mode(opts.mode)),
		session.WithToolchain(tc),
		session.WithTargetOS(targetOS),
		session.WithWorkers(opts.workers),
		session.WithStopOnError(opts.stopOnError),
		session.WithTargets(opts.targets...),
		session.WithParameters(params...),
		session.WithInstallPrefix(opts.installPrefix),
	), nil
}

// runClean evaluates the same BUSY tree and operation list runBuild would,
// then deletes each operation's outfile (and .rsp sibling) instead of
// running it (spec §3 supplemented Clean operation mode). This walks the
// generated-outfile model precisely rather than wiping the whole build
// directory, so a build directory holding outputs from more than one
// session (different toolchain/OS/mode) only loses what this session would
// have produced.
func runClean(opts buildOptions) int {
	sess, err := loadSession(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		return 1
	}

	table := reftable.New()
	resolver := resolve.New(table)
	if _, err := resolver.ResolveRoot(sess.RootSourceDir); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		return 1
	}

	merger := merge.New(table)
	instances, order, mergeErr := merger.MergeAll()
	if mergeErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), mergeErr)
		return 1
	}
	merger.ApplyParameters(sess.Parameters)

	gen := &codegen.Generator{
		Instances:     instances,
		Order:         order,
		Table:         table,
		BuildRoot:     filepath.Join(sess.RootBuildDir, string(sess.Mode)),
		Toolchain:     sess.Toolchain,
		OS:            sess.TargetOS,
		InstallPrefix: sess.InstallPrefix,
	}
	ops, err := gen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		return 1
	}

	removed := 0
	for _, target := range codegen.CleanTargets(ops, sess.TargetOS) {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
			return 1
		}
		removed++
	}
	fmt.Printf("cleaned %d build output(s) under %s\n", removed, opts.buildDir)
	return 0
}
