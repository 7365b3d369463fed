package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
	"github.com/omeyang/xvoice/pkg/voice/xsynth"
)

const demoText = "Hello there. This request shares the voice with its neighbours."

func createDemoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "运行三种竞争场景并打印门控统计",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "requests",
				Aliases: []string{"n"},
				Usage:   "每个场景的并发请求数",
				Value:   3,
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "模拟引擎每块的合成耗时",
				Value: 200 * time.Millisecond,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "以 JSON 输出每个场景的统计",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			n := cmd.Int("requests")
			if n <= 0 {
				return &usageError{err: fmt.Errorf("requests must be positive, got %d", n)}
			}
			return cmdDemo(ctx, cmd.Root().Writer, n, cmd.Duration("delay"), cmd.Bool("json"))
		},
	}
}

// scenario 描述一组并发请求如何分配声音与会话。
type scenario struct {
	name    string
	voice   func(i int) string
	session func(i int) string
}

func demoScenarios() []scenario {
	shared := uuid.NewString()
	return []scenario{
		{
			name:    "same voice, same session",
			voice:   func(int) string { return "narrator" },
			session: func(int) string { return shared },
		},
		{
			name:    "different voices, same session",
			voice:   func(i int) string { return "voice-" + strconv.Itoa(i) },
			session: func(int) string { return shared },
		},
		{
			name:    "same voice, different sessions",
			voice:   func(int) string { return "narrator" },
			session: func(int) string { return uuid.NewString() },
		},
	}
}

// scenarioReport 是单个场景的结果。
type scenarioReport struct {
	Name    string        `json:"name"`
	Elapsed time.Duration `json:"elapsed_ns"`
	// PeakConcurrency 引擎观察到的最大并发调用数。
	PeakConcurrency int64    `json:"peak_concurrency"`
	Failed          int      `json:"failed"`
	Stats           snapshot `json:"stats"`
}

func cmdDemo(ctx context.Context, out io.Writer, n int, delay time.Duration, asJSON bool) error {
	for _, sc := range demoScenarios() {
		rep, err := runScenario(ctx, sc, n, delay)
		if err != nil {
			return err
		}
		if asJSON {
			data, err := json.MarshalIndent(rep, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, string(data))
			continue
		}
		_, _ = fmt.Fprintf(out, "%-32s requests=%d elapsed=%s peak=%d queued=%d failed=%d\n",
			rep.Name, n, rep.Elapsed.Round(time.Millisecond), rep.PeakConcurrency,
			rep.Stats.Gate.QueuedRequests, rep.Failed)
	}
	return nil
}

// runScenario 用独立的门控与模拟引擎并发发出 n 个请求。
func runScenario(ctx context.Context, sc scenario, n int, delay time.Duration) (scenarioReport, error) {
	_, cfg, err := loadConfig("")
	if err != nil {
		return scenarioReport{}, err
	}
	cfg.Synth.EngineDelay = delay
	cfg.Gate.QueueThreshold = delay / 2

	a, err := newApp(cfg, xlog.Discard(), nil)
	if err != nil {
		return scenarioReport{}, err
	}
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	start := time.Now()
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.synth.Synthesize(ctx, xsynth.Request{
				VoiceID:   sc.voice(i),
				SessionID: sc.session(i),
				Text:      demoText,
			})
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return scenarioReport{}, fmt.Errorf("demo %q: %w", sc.name, context.Cause(ctx))
	}
	return scenarioReport{
		Name:            sc.name,
		Elapsed:         time.Since(start),
		PeakConcurrency: a.engine.PeakConcurrency(),
		Failed:          failed,
		Stats:           a.snapshot(),
	}, nil
}
