package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"rpucella.net/red-drive/internal/admin"
	"rpucella.net/red-drive/internal/archive"
	"rpucella.net/red-drive/internal/catalog"
	"rpucella.net/red-drive/internal/config"
	"rpucella.net/red-drive/internal/describe"
	"rpucella.net/red-drive/internal/logger"
	"rpucella.net/red-drive/internal/storage"
	"rpucella.net/red-drive/internal/upload"
)

const passwordEnv = "REDDRIVE_ADMIN_PASSWORD"

type session struct {
	ctx      context.Context
	commands map[string]command
	cfg      config.Config
	backend  storage.Backend
	store    *catalog.Store
	coord    *upload.Coordinator
	bundler  *archive.Bundler
	gate     *admin.Gate
	out      io.Writer
	admin    bool
	exit     bool // Set to true to exit the main loop.
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	logger.Init(cfg.Logger.Level, cfg.Logger.Format)

	ctx := context.Background()
	backend, err := initializeBackend(ctx, cfg.Backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	defer storage.Close(backend)

	ss, err := newSession(ctx, cfg, backend, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}

	if len(args) == 0 {
		loop(ss, os.Stdin)
		return 0
	}
	if password := os.Getenv(passwordEnv); password != "" {
		ss.admin = ss.gate.Check(password) == nil
	}
	if err := processCommand(ss, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}

func newSession(ctx context.Context, cfg config.Config, backend storage.Backend, out io.Writer) (*session, error) {
	gen, err := describe.New(cfg.Describe)
	if err != nil {
		return nil, err
	}
	policy, err := archive.ParsePolicy(cfg.Archive.Missing)
	if err != nil {
		return nil, err
	}
	repo := catalog.NewRepository(backend, cfg.Backend.Prefix, logger.For("catalog"))
	store := catalog.NewStore(repo, cfg.Catalog.TTL, nil)
	describer := describe.NewDescriber(gen, cfg.Describe.Placeholder, logger.For("describe"))
	return &session{
		ctx:      ctx,
		commands: initializeCommands(),
		cfg:      cfg,
		backend:  backend,
		store:    store,
		coord:    upload.NewCoordinator(store, describer, cfg.Upload.Workers, logger.For("upload")),
		bundler:  archive.NewBundler(backend, policy, logger.For("archive")),
		gate:     admin.NewGate(cfg.Admin),
		out:      out,
	}, nil
}

func loop(ss *session, in io.Reader) {
	fmt.Fprintf(ss.out, "RED DRIVE (%s)\n\n", ss.backend.Name())

	reader := bufio.NewReader(in)

	for !ss.exit {
		prompt := ">"
		if ss.admin {
			prompt = "#"
		}
		fmt.Fprintf(ss.out, "%s ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		fields := split(line)
		if len(fields) == 0 {
			continue
		}
		comm := fields[0]
		args := fields[1:]
		if err := processCommand(ss, comm, args); err != nil {
			fmt.Fprintf(ss.out, "Error: %s\n\n", err)
		}
	}
}

func processCommand(ss *session, comm string, args []string) error {
	commObj, ok := ss.commands[comm]
	if !ok {
		return fmt.Errorf("Unknown command: %s", comm)
	}
	if len(args) < commObj.minArgCount {
		return fmt.Errorf("Too few arguments (expected %d): %s", commObj.minArgCount, comm)
	}
	if commObj.maxArgCount >= 0 && len(args) > commObj.maxArgCount {
		return fmt.Errorf("Too many arguments (expected %d): %s", commObj.maxArgCount, comm)
	}
	if commObj.requireAdmin && !ss.admin {
		return fmt.Errorf("%s requires login", comm)
	}
	return commObj.process(args, ss)
}

// Split a line into fields at spaces.
// Do not split within double quotes "...".
//
func split(s string) []string {
	result := []string{}
	sb := &strings.Builder{}
	quoted := false
	started := false
	for _, r := range s {
		if r == '"' {
			quoted = !quoted
			started = true
		} else if !quoted && unicode.IsSpace(r) {
			if started {
				result = append(result, sb.String())
				sb.Reset()
			}
			started = false
		} else {
			started = true
			sb.WriteRune(r)
		}
	}
	if started {
		result = append(result, sb.String())
	}
	return result
}
