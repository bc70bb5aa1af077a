package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"

	"github.com/petasbytes/bb-agent/internal/config"
	"github.com/petasbytes/bb-agent/internal/provider"
	"github.com/petasbytes/bb-agent/internal/runner"
	"github.com/petasbytes/bb-agent/internal/telemetry"
	"github.com/petasbytes/bb-agent/memory"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Basic env check (SDK also reads API key)
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		fmt.Println("Missing ANTHROPIC_API_KEY; export it before running.")
		return 1
	}

	dir, err := memory.DefaultDir()
	if err != nil {
		// Relative to wherever we run; startup never stops on a missing home.
		fmt.Fprintf(os.Stderr, "warning: %v; saving conversations under ./%s\n", err, memory.DirName)
		dir = memory.DirName
	}
	cfg, err := config.Load(os.Getenv("AGT_CONFIG"), dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	log := config.NewLogger(os.Stderr, level)

	store := memory.NewStore(dir,
		memory.WithLogger(log),
		memory.WithPreClearResume(cfg.ResumePreClear),
	)
	rec := telemetry.New(store, telemetry.Options{
		Observe:         cfg.ObserveJSON,
		PersistPayloads: cfg.PersistPayloads,
		Logger:          log,
	})

	// Resume the newest snapshot, or start fresh
	conv := store.Load(cfg.SystemPrompt)
	rec.Emit("session_started", map[string]any{
		"model":            cfg.Model,
		"resumed_messages": len(conv) - 1,
		"dir":              dir,
	})

	client := provider.NewAnthropicClient()
	r := runner.New(client, anthropic.Model(cfg.Model), int64(cfg.MaxTokens), rec)
	r.TokenBudget = cfg.TokenBudget

	// Set up graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Chat with Claude (/clear to start over, /exit or Ctrl-C to quit)")

	// stdin reader goroutine -> lines into channel
	inputCh := make(chan string)
	go func() {
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}
		close(inputCh)
	}()

	reason := "eof"
outer:
	for {
		fmt.Print("\u001b[94mYou\u001b[0m: ")
		var (
			user string
			ok   bool
		)
		select {
		case <-ctx.Done():
			reason = "interrupted"
			break outer
		case user, ok = <-inputCh:
			if !ok {
				break outer
			}
		}

		switch parseCommand(user) {
		case cmdEmpty:
			continue
		case cmdExit:
			reason = "exit"
			break outer
		case cmdClear:
			if _, err := store.SaveBeforeClear(conv); err != nil {
				log.Warn().Err(err).Msg("failed to save conversation before clearing")
			}
			conv = []memory.Message{memory.System(cfg.SystemPrompt)}
			rec.Emit("conversation_cleared", nil)
			fmt.Println("Conversation cleared.")
			continue
		}

		conv = append(conv, memory.User(user))
		turnCtx := telemetry.WithTurnID(ctx, telemetry.NewTurnID())
		reply, err := r.RunTurn(turnCtx, conv)
		if err != nil {
			if errors.Is(err, runner.ErrQuotaExceeded) {
				// The pending user message stays in the quota snapshot.
				exit := store.SaveOnQuotaExceeded(conv, err.Error())
				finish(rec, log, "quota_exceeded")
				var req *memory.ExitRequest
				if errors.As(exit, &req) {
					return req.Code
				}
				return 1
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			// Drop the unanswered message so the next turn does not stack two user turns.
			conv = conv[:len(conv)-1]
			if ctx.Err() != nil {
				reason = "interrupted"
				break outer
			}
			continue
		}
		conv = append(conv, reply)

		_, err = store.Save(conv)
		if err != nil {
			log.Warn().Err(err).Msg("failed to save conversation")
		}
		rec.RecordTurn(err == nil)
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("stdin read error")
	}
	finish(rec, log, reason)
	return 0
}

func finish(rec *telemetry.Recorder, log zerolog.Logger, reason string) {
	if _, err := rec.Finish(reason); err != nil {
		log.Warn().Err(err).Msg("failed to write session report")
	}
}
