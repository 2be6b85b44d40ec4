package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"rpucella.net/red-drive/internal/admin"
	"rpucella.net/red-drive/internal/catalog"
	"rpucella.net/red-drive/internal/logger"
	"rpucella.net/red-drive/internal/server"
	"rpucella.net/red-drive/internal/upload"
)

type command struct {
	minArgCount  int
	maxArgCount  int
	process      func([]string, *session) error
	usage        string
	help         string
	requireAdmin bool
}

func maxLength(strings []string) int {
	current := 0
	for _, s := range strings {
		if len(s) > current {
			current = len(s)
		}
	}
	return current
}

func initializeCommands() map[string]command {
	commands := make(map[string]command)
	commands["exit"] = command{0, 0, commandQuit, "exit", "Bail out", false}
	commands["help"] = command{0, 0, commandHelp, "help", "List available commands", false}
	commands["ls"] = command{0, 1, commandLs, "ls [<query>]", "List resources, optionally matching query", false}
	commands["info"] = command{1, 1, commandInfo, "info <id>", "Show resource information", false}
	commands["get"] = command{0, -1, commandGet, "get [<id> ...]", "Download resources (all by default) as an archive", false}
	commands["refresh"] = command{0, 0, commandRefresh, "refresh", "Force a rescan of the catalog", false}
	commands["login"] = command{1, 1, commandLogin, "login <password>", "Unlock administrative commands", false}
	commands["hash"] = command{1, 1, commandHash, "hash <password>", "Print a bcrypt hash for admin.passwordHash", false}
	commands["put"] = command{3, -1, commandPut, "put <title> <category> <file> ...", "Upload local files as a new resource", true}
	commands["add"] = command{2, -1, commandAdd, "add <id> <file> ...", "Add or replace files of a resource", true}
	commands["remove"] = command{2, -1, commandRemove, "remove <id> <name> ...", "Remove files from a resource", true}
	commands["rm"] = command{1, 1, commandRm, "rm <id>", "Delete a resource", true}
	commands["serve"] = command{0, 1, commandServe, "serve [<address>]", "Serve the HTTP API", false}
	return commands
}

func commandHelp(args []string, ss *session) error {
	keys := make([]string, 0, len(ss.commands))
	names := make([]string, 0, len(ss.commands))
	for k := range ss.commands {
		keys = append(keys, k)
		names = append(names, ss.commands[k].usage)
	}
	sort.Strings(keys)
	width := maxLength(names)
	for _, k := range keys {
		fmt.Fprintf(ss.out, "%*s   %s\n", -width, ss.commands[k].usage, ss.commands[k].help)
	}
	return nil
}

func commandQuit(args []string, ss *session) error {
	ss.exit = true
	return nil
}

func commandLs(args []string, ss *session) error {
	query := ""
	if len(args) > 0 {
		query = args[0]
	}
	rs, err := ss.store.Search(ss.ctx, query)
	if err != nil {
		return fmt.Errorf("ls: %w", err)
	}
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID)
	}
	width := maxLength(ids)
	for _, r := range rs {
		fmt.Fprintf(ss.out, "%*s   %-10s %3d   %s\n", -width, r.ID, r.Category, len(r.Files), r.Title)
	}
	return nil
}

func commandInfo(args []string, ss *session) error {
	r, err := ss.store.Get(ss.ctx, args[0])
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	fmt.Fprintf(ss.out, "Id:          %s\n", r.ID)
	fmt.Fprintf(ss.out, "Title:       %s\n", r.Title)
	fmt.Fprintf(ss.out, "Category:    %s\n", r.Category)
	fmt.Fprintf(ss.out, "Path:        %s\n", r.Path)
	fmt.Fprintf(ss.out, "Files:       %s\n", strings.Join(r.Files, ", "))
	fmt.Fprintf(ss.out, "\n%s\n", r.Description)
	return nil
}

func commandGet(args []string, ss *session) error {
	var rs []catalog.Resource
	var err error
	if len(args) > 0 {
		rs, err = ss.store.Select(ss.ctx, args)
	} else {
		rs, err = ss.store.List(ss.ctx)
	}
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	name := ss.cfg.Archive.Name
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	report, err := ss.bundler.Bundle(ss.ctx, f, rs)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("get: %w", err)
	}
	for _, m := range report.Skipped {
		fmt.Fprintf(ss.out, "Skipped missing file %s in %s\n", m.File, m.ID)
	}
	fmt.Fprintf(ss.out, "%d files from %d resources written to %s\n", len(report.Entries), len(rs), name)
	return nil
}

func commandRefresh(args []string, ss *session) error {
	ss.store.Invalidate()
	rs, err := ss.store.List(ss.ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	fmt.Fprintf(ss.out, "%d resources\n", len(rs))
	return nil
}

func commandLogin(args []string, ss *session) error {
	if err := ss.gate.Check(args[0]); err != nil {
		ss.admin = false
		return fmt.Errorf("login: %w", err)
	}
	ss.admin = true
	return nil
}

func commandHash(args []string, ss *session) error {
	h, err := admin.Hash(args[0])
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	fmt.Fprintln(ss.out, h)
	return nil
}

func readLocalFiles(paths []string) ([]upload.File, error) {
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, upload.File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func reportUploadError(err error, ss *session) {
	var uerr *upload.Error
	if errors.As(err, &uerr) {
		fmt.Fprintf(ss.out, "Resource %s is partially written (%s). Run the same command again to complete it.\n",
			uerr.ID, strings.Join(uerr.Written, ", "))
	}
}

func commandPut(args []string, ss *session) error {
	files, err := readLocalFiles(args[2:])
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	r, err := ss.coord.Upload(ss.ctx, upload.Request{
		Title:    args[0],
		Category: args[1],
		Files:    files,
	})
	if err != nil {
		reportUploadError(err, ss)
		return fmt.Errorf("put: %w", err)
	}
	fmt.Fprintf(ss.out, "Resource %s created with %d files\n", r.ID, len(r.Files))
	return nil
}

func commandAdd(args []string, ss *session) error {
	files, err := readLocalFiles(args[1:])
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	r, err := ss.coord.Edit(ss.ctx, args[0], upload.Edit{Add: files})
	if err != nil {
		reportUploadError(err, ss)
		return fmt.Errorf("add: %w", err)
	}
	fmt.Fprintf(ss.out, "Resource %s now has %d files\n", r.ID, len(r.Files))
	return nil
}

func commandRemove(args []string, ss *session) error {
	r, err := ss.coord.Edit(ss.ctx, args[0], upload.Edit{Remove: args[1:]})
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	fmt.Fprintf(ss.out, "Resource %s now has %d files\n", r.ID, len(r.Files))
	return nil
}

func commandRm(args []string, ss *session) error {
	if err := ss.store.Delete(ss.ctx, args[0]); err != nil {
		return fmt.Errorf("rm: %w", err)
	}
	fmt.Fprintf(ss.out, "Resource %s deleted\n", args[0])
	return nil
}

func commandServe(args []string, ss *session) error {
	addr := ss.cfg.Server.Address
	if len(args) > 0 {
		addr = args[0]
	}
	ctx, stop := signal.NotifyContext(ss.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	srv := server.New(ss.store, ss.coord, ss.bundler, ss.gate, ss.cfg.Archive.Name, logger.For("server"))
	return srv.Run(ctx, addr)
}
