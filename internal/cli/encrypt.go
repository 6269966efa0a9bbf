package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/logger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newEncryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a connection password for the config file",
		Long: `Read a password and print the token to put in a connection's password
field. The password is prompted for without echo when standard input is a
terminal and read from standard input otherwise. The token is bound to the
configured vault secret and salt.`,
		Example: `  vizly encrypt
  printf '%s' "$DB_PASSWORD" | vizly encrypt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			v, err := newVault(cfg, logger.FromContext(cmd.Context()))
			if err != nil {
				return err
			}

			plain, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			token, err := v.Encrypt(plain)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

// readSecret prompts on a terminal and otherwise reads all of in, dropping
// one trailing newline.
func readSecret(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", errs.Wrap(errs.ErrKindInvalidInput, "failed to read password", err)
		}
		return string(b), nil
	}

	b, err := io.ReadAll(in)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "failed to read password", err)
	}
	s := strings.TrimSuffix(string(b), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}
