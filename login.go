package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/ringsync/ringsync/internal/scoring"
)

func newLoginCmd() *cobra.Command {
	var tokenFlag string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save scoring service credentials",
		Long: `Save an access token for the scoring service.

The token is read from --token, or from stdin when the flag is omitted
(so it can be piped in without appearing in shell history). It is
stored with owner-only permissions under the data directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token := tokenFlag
			if token == "" {
				statusf(flagQuiet, "Paste scoring access token: ")

				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil {
					return fmt.Errorf("reading token: %w", err)
				}

				token = strings.TrimSpace(line)
			}

			if token == "" {
				return fmt.Errorf("no token provided")
			}

			path := resolvedCfg.TokenPath()
			if err := scoring.SaveToken(path, &oauth2.Token{AccessToken: token}); err != nil {
				return err
			}

			statusf(flagQuiet, "Token saved to %s\n", path)

			return nil
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "scoring service access token")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved scoring credentials",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := resolvedCfg.TokenPath()

			if err := os.Remove(path); err != nil {
				if os.IsNotExist(err) {
					statusf(flagQuiet, "No saved credentials.\n")
					return nil
				}

				return fmt.Errorf("removing token: %w", err)
			}

			statusf(flagQuiet, "Credentials removed.\n")

			return nil
		},
	}
}
