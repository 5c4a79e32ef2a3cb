package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PolarWolf314/forge/internal/factory"
	"github.com/PolarWolf314/forge/internal/keys"
	"github.com/PolarWolf314/forge/internal/ui"
	"github.com/PolarWolf314/forge/internal/utils"
	"github.com/PolarWolf314/forge/internal/workers"
)

type shellCommand struct {
	usage string
	help  string
	run   func(sh *shell, ctx context.Context, args []string) error
}

var errUsage = errors.New("usage")

// shellCommands is filled in init because help refers back to it.
var shellCommands map[string]shellCommand

func init() {
	shellCommands = map[string]shellCommand{
		"help":   {"help", "show this list", runHelp},
		"status": {"status", "show whether the session is unlocked", runStatus},
		"unlock": {"unlock", "unlock with your passphrase", runUnlock},
		"duress": {"duress", "open the decoy session", runDuress},
		"lock":   {"lock", "lock the session and close the vault", runLock},
		"touch":  {"touch", "record activity without doing anything", runTouch},
		"get":    {"get <key>", "print a vault entry", runGet},
		"put":    {"put <key> <value>", "store a vault entry", runPut},
		"del":    {"del <key>", "delete a vault entry", runDel},
		"task":   {"task add|list|advance|run|draft", "manage the task queue", runTask},
	}
}

func runHelp(sh *shell, ctx context.Context, args []string) error {
	names := make([]string, 0, len(shellCommands))
	for name := range shellCommands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := shellCommands[name]
		sh.printf("  %-36s %s\n", ui.Code.Sprint(c.usage), ui.Muted.Sprint(c.help))
	}
	sh.printf("  %-36s %s\n", ui.Code.Sprint("quit"), ui.Muted.Sprint("leave the shell"))
	return nil
}

func runStatus(sh *shell, ctx context.Context, args []string) error {
	sh.printf("%s\n", ui.StatusLine(sh.session.Status(), time.Now()))
	return nil
}

func runUnlock(sh *shell, ctx context.Context, args []string) error {
	passphrase, err := utils.ReadPassphraseFrom(sh.in, "Passphrase: ")
	if err != nil {
		return err
	}
	defer keys.Wipe(passphrase)

	spinner, cleanup := startSpinner(sh.out, "Unlocking...")
	defer cleanup()

	if err := sh.session.Unlock(ctx, passphrase); err != nil {
		return err
	}
	spinner.FinalMSG = ui.Success.Sprint("✓") + " Unlocked"
	return nil
}

func runDuress(sh *shell, ctx context.Context, args []string) error {
	spinner, cleanup := startSpinner(sh.out, "Unlocking...")
	defer cleanup()

	if err := sh.session.DeclareDuress(ctx); err != nil {
		return err
	}
	spinner.FinalMSG = ui.Success.Sprint("✓") + " Unlocked"
	return nil
}

func runLock(sh *shell, ctx context.Context, args []string) error {
	if err := sh.session.Lock(); err != nil {
		return err
	}
	sh.succeed("Locked")
	return nil
}

func runTouch(sh *shell, ctx context.Context, args []string) error {
	sh.printf("%s\n", ui.Muted.Sprint("activity recorded"))
	return nil
}

func runGet(sh *shell, ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("get <key>")
	}
	value, err := sh.session.Vault.Read(ctx, args[0])
	if err != nil {
		return err
	}
	sh.printf("%s\n", value)
	return nil
}

func runPut(sh *shell, ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("put <key> <value>")
	}
	if err := sh.session.Vault.Write(ctx, args[0], []byte(strings.Join(args[1:], " "))); err != nil {
		return err
	}
	sh.succeed("Stored %s", ui.Highlight.Sprint(args[0]))
	return nil
}

func runDel(sh *shell, ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("del <key>")
	}
	if err := sh.session.Vault.Delete(ctx, args[0]); err != nil {
		return err
	}
	sh.succeed("Deleted %s", ui.Highlight.Sprint(args[0]))
	return nil
}

func runTask(sh *shell, ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("task add|list|advance|run|draft")
	}
	f := sh.session.Factory

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return usageError("task add <kind> [summary]")
		}
		task := factory.Task{
			ID:      uuid.NewString(),
			Kind:    factory.Kind(args[1]),
			Summary: strings.Join(args[2:], " "),
		}
		if err := f.AddTask(task); err != nil {
			return err
		}
		sh.succeed("Queued %s task %s", task.Kind, ui.Highlight.Sprint(task.ID))

	case "list":
		tasks := f.ListTasks()
		if len(tasks) == 0 {
			sh.printf("%s\n", ui.Muted.Sprint("no tasks"))
			return nil
		}
		for _, t := range tasks {
			sh.printf("%s  %-10s %-8s %s\n", t.ID, t.Kind, t.Status, utils.Truncate(t.Summary, 48))
		}

	case "advance":
		if len(args) != 3 {
			return usageError("task advance <id> <status>")
		}
		if err := f.Advance(args[1], factory.Status(args[2])); err != nil {
			return err
		}
		sh.succeed("Task %s is now %s", ui.Highlight.Sprint(args[1]), args[2])

	case "run":
		spinner, cleanup := startSpinner(sh.out, "Running tasks...")
		defer cleanup()

		report, err := sh.session.Runner.RunOnce(ctx)
		if err != nil {
			return err
		}
		spinner.FinalMSG = fmt.Sprintf("%s %d done, %d failed, %d requeued",
			ui.Success.Sprint("✓"), len(report.Done), len(report.Failed), len(report.Requeued))

	case "draft":
		if len(args) != 2 {
			return usageError("task draft <id>")
		}
		data, err := sh.session.Vault.Read(ctx, workers.DraftKey(args[1]))
		if err != nil {
			return err
		}
		var draft workers.Draft
		if err := json.Unmarshal(data, &draft); err != nil {
			return fmt.Errorf("decoding draft: %w", err)
		}
		sh.printf("%s\n", draft.LinearBrief)

	default:
		return usageError("task add|list|advance|run|draft")
	}
	return nil
}

func usageError(usage string) error {
	return fmt.Errorf("%w: %s", errUsage, ui.Code.Sprint(usage))
}
