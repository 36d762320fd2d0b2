package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"script2video/internal/assets"
	"script2video/internal/audio"
	"script2video/internal/config"
	"script2video/internal/logging"
	"script2video/internal/plan"
	"script2video/internal/renderer"
	"script2video/internal/script"
	"script2video/internal/system"
	"script2video/internal/timeline"
	"script2video/internal/voice"
)

const usageText = `Usage: script2video <command> [flags]

Commands:
  compile   compile a script into a render plan
  render    render a script or plan into an mp4
  speakers  list the voices the engine offers
  say       synthesize a single utterance to a WAV file
  assets    manage the asset index

Run 'script2video <command> -h' for command flags.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usageText)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "compile":
		err = cmdCompile(ctx, os.Args[2:])
	case "render":
		err = cmdRender(ctx, os.Args[2:])
	case "speakers":
		err = cmdSpeakers(ctx, os.Args[2:])
	case "say":
		err = cmdSay(ctx, os.Args[2:])
	case "assets":
		err = cmdAssets(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usageText)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("[-] Error: %v", err)
	}
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "config.yaml", "Path to the configuration file")
	fs.StringVar(&c.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&c.logJSON, "log-json", false, "Emit logs as JSON")
	return c
}

func (c *commonFlags) setup() (*config.Config, *slog.Logger, error) {
	logger := logging.NewLogger(c.logLevel, c.logJSON)
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// loadScript parses either the YAML schema or the simple text format,
// selected by extension.
func loadScript(path string) (*script.Script, error) {
	if strings.HasSuffix(strings.ToLower(path), ".txt") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return script.ParseSimple(string(data))
	}
	return script.ParseFile(path)
}

// resolveScript picks the given path, or the freshest file in scripts/.
func resolveScript(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	latest, err := system.FindLatestScript("scripts")
	if err != nil {
		return "", fmt.Errorf("no script given and none found in scripts/: %w", err)
	}
	fmt.Printf("[*] Using script: %s\n", latest)
	return latest, nil
}

func pickEstimator(ctx context.Context, name string, cfg *config.Config, logger *slog.Logger) timeline.DurationEstimator {
	switch name {
	case "heuristic":
		return voice.NewHeuristicEstimator()
	default:
		client := voice.NewClient(cfg.Voicevox.URL, logger)
		if !client.Available(ctx) {
			fmt.Printf("[!] VOICEVOX engine not reachable at %s, falling back to heuristic timing\n", cfg.Voicevox.URL)
			return voice.NewHeuristicEstimator()
		}
		return client
	}
}

func compilePlan(ctx context.Context, cfg *config.Config, logger *slog.Logger, scriptPath, estimatorName string) (*plan.SerializedPlan, error) {
	s, err := loadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	fmt.Printf("[*] Script: %q, %d scenes, %d lines\n", s.Title, len(s.Scenes), s.TotalLines())

	est := pickEstimator(ctx, estimatorName, cfg, logger)
	tl, err := timeline.Compile(ctx, s, est, cfg.CompileOptions())
	if err != nil {
		return nil, err
	}

	lib := assets.NewLibrary(cfg.Paths.Characters, cfg.Paths.Backgrounds, cfg.Paths.BGM)
	sp, err := plan.Emit(tl, lib)
	if err != nil {
		return nil, err
	}
	fmt.Printf("[*] Plan %s: %d events, %.2fs total\n", sp.ID[:8], len(sp.Events), sp.TotalDuration)
	return sp, nil
}

func cmdCompile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	common := addCommonFlags(fs)
	scriptPath := fs.String("script", "", "Script file (.yaml or .txt); default is the freshest file in scripts/")
	outPath := fs.String("out", "", "Plan output path (default: output/<script>.plan.yaml)")
	estimatorName := fs.String("estimator", "voicevox", "Duration estimator: voicevox, heuristic")
	asJSON := fs.Bool("json", false, "Also write the plan as JSON next to the YAML")
	fs.Parse(args)

	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	sp, src, err := compileFrom(ctx, cfg, logger, *scriptPath, *estimatorName)
	if err != nil {
		return err
	}

	out := *outPath
	if out == "" {
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		out = filepath.Join("output", base+".plan.yaml")
	}
	if err := plan.Write(sp, out); err != nil {
		return err
	}
	if *asJSON {
		jsonOut := strings.TrimSuffix(out, filepath.Ext(out)) + ".json"
		if err := plan.WriteJSON(sp, jsonOut); err != nil {
			return err
		}
	}

	fmt.Printf("[+++] Plan written: %s\n", out)
	return nil
}

func compileFrom(ctx context.Context, cfg *config.Config, logger *slog.Logger, scriptPath, estimatorName string) (*plan.SerializedPlan, string, error) {
	src, err := resolveScript(scriptPath)
	if err != nil {
		return nil, "", err
	}
	sp, err := compilePlan(ctx, cfg, logger, src, estimatorName)
	if err != nil {
		return nil, "", err
	}
	return sp, src, nil
}

func cmdRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	common := addCommonFlags(fs)
	scriptPath := fs.String("script", "", "Script file to compile and render")
	planPath := fs.String("plan", "", "Pre-compiled plan file (skips compilation)")
	outPath := fs.String("out", "", "Video output path (default: output/video/<name>_<timestamp>.mp4)")
	workers := fs.Int("workers", 4, "Parallel segment encoders")
	encoder := fs.String("encoder", "", "H.264 encoder (default: autodetect)")
	creditURL := fs.String("credit", "", "URL shown as a QR code over the closing seconds")
	noVoice := fs.Bool("no-voice", false, "Render with silent audio (layout preview)")
	keepTemp := fs.Bool("keep-temp", false, "Keep the temporary working directory")
	estimatorName := fs.String("estimator", "voicevox", "Duration estimator when compiling: voicevox, heuristic")
	fs.Parse(args)

	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	system.InitResourceLimits(logger)
	logger.Debug("host", "stats", system.CollectHostStats().String())

	var sp *plan.SerializedPlan
	name := "video"
	if *planPath != "" {
		sp, err = plan.Read(*planPath)
		if err != nil {
			return err
		}
		name = strings.TrimSuffix(filepath.Base(*planPath), ".plan.yaml")
		fmt.Printf("[*] Plan %s: %d events, %.2fs total\n", sp.ID[:8], len(sp.Events), sp.TotalDuration)
	} else {
		var src string
		sp, src, err = compileFrom(ctx, cfg, logger, *scriptPath, *estimatorName)
		if err != nil {
			return err
		}
		name = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}

	var synth renderer.Synthesizer
	if !*noVoice {
		client := voice.NewClient(cfg.Voicevox.URL, logger)
		if !client.Available(ctx) {
			return fmt.Errorf("VOICEVOX engine not reachable at %s (use -no-voice for a silent preview)", cfg.Voicevox.URL)
		}
		if version, err := client.Version(ctx); err == nil {
			fmt.Printf("[*] VOICEVOX engine %s\n", version)
		}
		synth = client
	}

	out := *outPath
	if out == "" {
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		out = filepath.Join(cfg.Paths.OutputVideo, fmt.Sprintf("%s_%s.mp4", name, timestamp))
	}

	enc := *encoder
	if enc == "" {
		enc = cfg.Video.Encoder
	}
	lib := assets.NewLibrary(cfg.Paths.Characters, cfg.Paths.Backgrounds, cfg.Paths.BGM)
	r := renderer.New(cfg, lib, synth, logger, renderer.Options{
		Workers:   *workers,
		Encoder:   enc,
		Quality:   cfg.Video.Quality,
		CreditURL: *creditURL,
		KeepTemp:  *keepTemp,
	})

	started := time.Now()
	if err := r.Render(ctx, sp, out); err != nil {
		return err
	}
	fmt.Printf("[+++] Done in %s: %s\n", time.Since(started).Round(time.Second), out)
	return nil
}

func cmdSpeakers(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("speakers", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Parse(args)

	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}

	client := voice.NewClient(cfg.Voicevox.URL, logger)
	speakers, err := client.Speakers(ctx)
	if err != nil {
		return err
	}
	for _, sp := range speakers {
		for _, style := range sp.Styles {
			fmt.Printf("%4d  %s (%s)\n", style.ID, sp.Name, style.Name)
		}
	}
	return nil
}

func cmdSay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("say", flag.ExitOnError)
	common := addCommonFlags(fs)
	text := fs.String("text", "", "Text to synthesize")
	speaker := fs.Int("speaker", -1, "Engine voice ID (default: configured default speaker)")
	outPath := fs.String("out", "out.wav", "WAV output path")
	speed := fs.Float64("speed", 1.0, "Speech speed scale")
	fs.Parse(args)

	if *text == "" {
		return fmt.Errorf("-text is required")
	}

	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}

	id := *speaker
	if id < 0 {
		id = cfg.Voicevox.DefaultSpeaker
	}

	client := voice.NewClient(cfg.Voicevox.URL, logger)
	if err := client.SynthesizeToFile(ctx, *text, id, voice.Params{Speed: *speed}, *outPath); err != nil {
		return err
	}
	if dur, err := audio.Duration(*outPath); err == nil {
		fmt.Printf("[+++] %s (%.2fs)\n", *outPath, dur)
	} else {
		fmt.Printf("[+++] %s\n", *outPath)
	}
	return nil
}

func cmdAssets(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("assets", flag.ExitOnError)
	common := addCommonFlags(fs)
	rebuild := fs.Bool("rebuild", false, "Rescan the asset directories and rebuild the index")
	fs.Parse(args)

	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.AssetIndex), 0755); err != nil {
		return err
	}
	ix, err := assets.OpenIndex(cfg.Paths.AssetIndex, logger)
	if err != nil {
		return err
	}
	defer ix.Close()

	if *rebuild {
		lib := assets.NewLibrary(cfg.Paths.Characters, cfg.Paths.Backgrounds, cfg.Paths.BGM)
		n, err := ix.Rebuild(ctx, lib)
		if err != nil {
			return err
		}
		fmt.Printf("[*] Indexed %d assets\n", n)
	}

	stats, err := ix.Stats(ctx)
	if err != nil {
		return err
	}
	for _, kind := range []assets.Kind{assets.KindCharacter, assets.KindBackground, assets.KindBGM} {
		st := stats[kind]
		fmt.Printf("%-12s %4d files, %.1f MiB\n", kind, st.Count, float64(st.TotalSize)/(1<<20))
	}
	return nil
}
