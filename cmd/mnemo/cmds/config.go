package cmds

import (
	"github.com/go-go-golems/mnemo/pkg/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(struct {
				ConfigFile string             `yaml:"config-file,omitempty"`
				Settings   *settings.Settings `yaml:"settings"`
			}{
				ConfigFile: viper.ConfigFileUsed(),
				Settings:   redact(s),
			}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func redact(s *settings.Settings) *settings.Settings {
	ret := s.Clone()
	for _, secret := range []*string{&ret.OpenAI.APIKey, &ret.Weaviate.APIKey} {
		if *secret != "" {
			*secret = "***"
		}
	}
	return ret
}
