package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/forge/internal/configs"
	kerrors "github.com/PolarWolf314/forge/internal/errors"
	"github.com/PolarWolf314/forge/internal/kernel"
	"github.com/PolarWolf314/forge/internal/session"
	"github.com/PolarWolf314/forge/internal/ui"
)

func init() {
	addLoggingFlags(ShellCmd)
}

// ShellCmd runs an interactive session.
var ShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive forge session",
	Long: `Starts a session that begins locked. Type help inside the shell for the
list of commands.

The session locks itself after the configured idle timeout. Locking closes
the vault; run unlock again to reopen it.

Examples:
  forge shell
  printf 'unlock\n%s\nget notes\n' "$PASS" | forge shell`,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting shell command")
	out := cmd.OutOrStdout()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	config, err := configs.Load(settings.ConfigPath)
	if kerrors.Is(err, kerrors.ErrNotInitialized) {
		fmt.Fprintf(out, "%s forge has not been initialized on this device\n", ui.Error.Sprint("✗"))
		fmt.Fprintf(out, "%s Run %s first\n", ui.Info.Sprint("→"), ui.Code.Sprint("forge init"))
		return err
	}
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to load configuration: %v", err)
	}

	s, err := session.New(config, nil, session.WithLogger(Logger))
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to start session: %v", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s.Start(ctx)

	fmt.Fprint(out, ui.Banner("forge"))
	fmt.Fprintf(out, "%s Type %s for commands, %s to leave\n", ui.Info.Sprint("→"), ui.Code.Sprint("help"), ui.Code.Sprint("quit"))

	sh := &shell{
		session: s,
		in:      bufio.NewReader(cmd.InOrStdin()),
		out:     out,
	}
	return sh.run(ctx)
}

// shell reads one command per line until quit or end of input.
type shell struct {
	session *session.Session
	in      *bufio.Reader
	out     io.Writer
}

func (sh *shell) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(sh.out, "forge> ")

		line, err := sh.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return Logger.ErrorfAndReturn("Failed to read input: %v", err)
		}
		if err == io.EOF && line == "" {
			fmt.Fprintln(sh.out)
			return nil
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name, args := fields[0], fields[1:]
		if name == "quit" || name == "exit" {
			return nil
		}

		command, ok := shellCommands[name]
		if !ok {
			sh.failf("Unknown command %s. Type %s for the list.", ui.Highlight.Sprint(name), ui.Code.Sprint("help"))
			continue
		}

		sh.session.Touch()
		Logger.Debugf("Running shell command %s with %d args", name, len(args))
		if err := command.run(sh, ctx, args); err != nil {
			sh.fail(err)
		}
	}
}

func (sh *shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) succeed(format string, args ...any) {
	sh.printf("%s %s\n", ui.Success.Sprint("✓"), fmt.Sprintf(format, args...))
}

func (sh *shell) failf(format string, args ...any) {
	sh.printf("%s %s\n", ui.Error.Sprint("✗"), fmt.Sprintf(format, args...))
}

// fail prints err in user terms. Messages never distinguish a decoy session
// from a real one.
func (sh *shell) fail(err error) {
	Logger.Debugf("Shell command failed: %v", err)

	switch {
	case kerrors.Is(err, kerrors.ErrNotAuthorized):
		if sh.session.Status().Mode == kernel.Ghost {
			sh.failf("Session is locked. Run %s first.", ui.Code.Sprint("unlock"))
			return
		}
		// Only a decoy session reaches this; it reads as a plain queue
		// failure.
		sh.failf("Task queue is unavailable, try again later")
	case kerrors.Is(err, kerrors.ErrVaultClosed):
		sh.failf("Vault is closed. Run %s to reopen it.", ui.Code.Sprint("unlock"))
	case kerrors.Is(err, kerrors.ErrTransitionDenied):
		sh.failf("Run %s before unlocking again", ui.Code.Sprint("lock"))
	case kerrors.Is(err, kerrors.ErrInvalidPassphrase):
		sh.failf("Incorrect passphrase")
	case kerrors.Is(err, kerrors.ErrKeyNotFound):
		sh.failf("No such entry")
	default:
		sh.failf("%v", err)
	}
}
