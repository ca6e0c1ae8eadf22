package cmds

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errOffline = errors.New("network unreachable")

func NewProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check whether mnemo considers the network reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			if newProber(s).Probe(cmd.Context()) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "online (%s)\n", s.Probe.URL)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "offline (%s, timeout %s)\n", s.Probe.URL, s.Probe.Timeout)
			return errOffline
		},
	}
}
