package cmds

import (
	"context"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/mnemo/pkg/events"
	"github.com/go-go-golems/mnemo/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the knowledge base",
		Long: "Chat with the knowledge base. Messages typed while offline are queued and sent, " +
			"in order, with the next message typed while online. When stdin is not a terminal, " +
			"one message or command is read per line.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			session, _ := cmd.Flags().GetString("session")
			lineMode, _ := cmd.Flags().GetBool("line")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if lineMode || !isTerminal(os.Stdin) {
				ctrl, store, err := newController(s, events.NullSink{})
				if err != nil {
					return err
				}
				defer func() {
					_ = store.Close()
				}()
				if session != "" {
					if _, err := ctrl.LoadConversation(ctx, session); err != nil {
						return err
					}
				}
				return ui.RunLineMode(ctx, ctrl, os.Stdin, cmd.OutOrStdout())
			}

			router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
			if err != nil {
				return err
			}
			ctrl, store, err := newController(s, router.Sink(events.DefaultTopic))
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			if session != "" {
				if _, err := ctrl.LoadConversation(ctx, session); err != nil {
					return err
				}
			}

			// the terminal belongs to the UI from here on
			redirectLogs(viper.GetString("log-file"))

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			eg, ctx := errgroup.WithContext(ctx)

			p := tea.NewProgram(
				ui.NewModel(ctx, ctrl),
				tea.WithAltScreen(),
				tea.WithContext(ctx),
			)
			router.AddEventHandler("ui-forward", events.DefaultTopic, ui.ForwardEvents(p))

			eg.Go(func() error {
				defer cancel()
				return router.Run(ctx)
			})
			eg.Go(func() error {
				defer cancel()
				<-router.Running()
				_, err := p.Run()
				if err == tea.ErrProgramKilled {
					return nil
				}
				return err
			})

			err = eg.Wait()
			if cerr := router.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("Could not close event router")
			}
			return err
		},
	}

	cmd.Flags().String("session", "", "Resume a saved session")
	cmd.Flags().Bool("line", false, "Read one message per line instead of starting the terminal UI")

	return cmd
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func redirectLogs(logFile string) {
	if logFile == "" {
		log.Logger = log.Output(io.Discard)
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		NoColor: true,
		Out: &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, //days
		},
	})
}
