package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"ketama/internal/config"
	"ketama/internal/ring"
)

//go:embed help
var helpString string

// backend is the ring surface the shell drives, either local or remote.
type backend interface {
	GetNode(ctx context.Context, key string) (string, error)
	AddNodes(ctx context.Context, nodes map[string]int) error
	RemoveNodes(ctx context.Context, ids ...string) error
	ListNodes(ctx context.Context) (map[string]int, error)
}

// localRing adapts a ring.Ring to backend.
type localRing struct {
	r *ring.Ring
}

func (l localRing) GetNode(_ context.Context, key string) (string, error) {
	return l.r.GetNode(key)
}

func (l localRing) AddNodes(_ context.Context, nodes map[string]int) error {
	return l.r.AddNodes(nodes)
}

func (l localRing) RemoveNodes(_ context.Context, ids ...string) error {
	l.r.RemoveNodes(ids...)
	return nil
}

func (l localRing) ListNodes(_ context.Context) (map[string]int, error) {
	return l.r.Weights(), nil
}

func runShell(b backend, logger zerolog.Logger) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "ketama> ",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize readline")
	}
	defer rl.Close()

	fmt.Println("ketama shell (type '.help' for commands, '.exit' to quit)")
	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}

		line = strings.TrimSpace(line)
		if line == ".help" {
			fmt.Println(helpString)
			continue
		} else if line == ".exit" {
			break
		} else if line == "" {
			continue
		}

		if err := handleCommand(b, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func handleCommand(b backend, line string) error {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch cmd {
	case "get":
		if len(args) == 0 {
			return errors.New("usage: get KEY...")
		}
		for _, key := range args {
			node, err := b.GetNode(ctx, key)
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s\n", key, node)
		}

	case "add":
		specs, err := config.ParseNodes(strings.Join(args, ","))
		if err != nil {
			return err
		}
		if len(specs) == 0 {
			return errors.New("usage: add ID[=WEIGHT]...")
		}
		nodes := make(map[string]int, len(specs))
		for _, s := range specs {
			if _, dup := nodes[s.ID]; dup {
				return fmt.Errorf("%w: %s", ring.ErrDuplicateNode, s.ID)
			}
			nodes[s.ID] = s.Weight
		}
		if err := b.AddNodes(ctx, nodes); err != nil {
			return err
		}
		fmt.Printf("added %d node(s)\n", len(nodes))

	case "remove":
		if len(args) == 0 {
			return errors.New("usage: remove ID...")
		}
		if err := b.RemoveNodes(ctx, args...); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", strings.Join(args, ", "))

	case "nodes":
		weights, err := b.ListNodes(ctx)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(weights))
		for id := range weights {
			ids = append(ids, id)
		}
		ring.SortIDs(ids)
		for _, id := range ids {
			fmt.Printf("%s\t%d\n", id, weights[id])
		}

	default:
		return fmt.Errorf("unknown command %q (type '.help')", cmd)
	}
	return nil
}
