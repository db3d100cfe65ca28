package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/coderoom/internal/client/sandbox"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/filex"
)

// Files prints the tree with file sizes. The open file is marked.
func (a *App) Files(ctx context.Context) error {
	ws := a.workspace()
	current := ws.Current()

	t := a.table("Path", "Size")
	_ = ws.Tree().Walk(func(p string, n filetree.Node) error {
		if n.IsDir() {
			t.Append([]string{p + "/", ""})
			return nil
		}
		if p == current {
			p = "* " + p
		}
		t.Append([]string{p, humanize.Bytes(uint64(len(n.File.Contents)))})
		return nil
	})
	t.Render()
	return nil
}

func (a *App) Cat(ctx context.Context, path string) error {
	contents, err := a.workspace().Open(path)
	if err != nil {
		return err
	}
	a.printf("%s", contents)
	if contents != "" && !strings.HasSuffix(contents, "\n") {
		a.printf("\n")
	}
	return nil
}

// Edit opens path and replaces its contents with what the user types.
// Only existing files can be edited; empty input leaves the file alone.
func (a *App) Edit(ctx context.Context, path string) error {
	ws := a.workspace()
	if _, err := ws.Open(path); err != nil {
		return err
	}

	contents, err := GetMultiline(a.reader, "New contents of "+path, a.out)
	if err != nil {
		return err
	}
	if contents == "" {
		printlnFn("Unchanged")
		return nil
	}
	if err := ws.Edit(path, contents); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%s updated (%s), run 'save' to persist", path, humanize.Bytes(uint64(len(contents)))))
	return nil
}

func (a *App) Save(ctx context.Context) error {
	ws := a.workspace()
	if err := ws.Save(ctx); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Saved %d files", len(ws.Tree().Paths())))
	return nil
}

// RunProject mounts the tree and runs it in the sandbox. start, when given,
// overrides the start command for this run.
func (a *App) RunProject(ctx context.Context, start string) error {
	a.mu.Lock()
	ws, runner := a.ws, a.runner
	a.mu.Unlock()

	if err := ws.Mount(); err != nil {
		return err
	}

	install, startArgv := ws.Commands()
	if start != "" {
		argv, err := sandbox.ParseCommand(start)
		if err != nil {
			return err
		}
		startArgv = argv
	}

	p, err := runner.Run(ctx, install, startArgv)
	if err != nil {
		return err
	}

	timeout := a.config.PreviewTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url, err := p.WaitReady(waitCtx)
	if err != nil {
		return err
	}
	printlnFn("Preview ready:", url)
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	runner := a.runner
	a.mu.Unlock()

	if runner.Running() == nil {
		printlnFn("Nothing is running")
		return nil
	}
	runner.Stop()
	printlnFn("Stopped")
	return nil
}

// Export downloads the last saved snapshot. With dest it is written there
// as JSON; otherwise the presigned link is printed.
func (a *App) Export(ctx context.Context, dest string) error {
	ws := a.workspace()
	url, err := a.api.ExportURL(ctx, ws.ProjectID())
	if err != nil {
		return err
	}
	if dest == "" {
		printlnFn("Download link (valid for a limited time):", url)
		return nil
	}

	body, err := a.api.Download(ctx, url)
	if err != nil {
		return err
	}
	tree, err := filetree.Decode(body)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := filex.WriteFile(dest, body, 0o644); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Exported %d files to %s (%s)", len(tree.Paths()), dest, humanize.Bytes(uint64(len(body)))))
	return nil
}
