package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

func LoginCmd() *cobra.Command {
	var (
		token  string
		apiURL string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an access token for later commands",
		Long:  "Saves a signed access token and API URL to the user config directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !LooksLikeJWT(token) {
				return fmt.Errorf("token is not a JWT (expected header.payload.signature)")
			}
			if apiURL == "" {
				apiURL = defaultAPIURL
			}
			if err := SaveGlobalConfig(&GlobalConfig{Token: token, APIURL: apiURL}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved credentials for %s\n", apiURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "with-token", "", "Signed access token")
	cmd.Flags().StringVar(&apiURL, "url", "", "API base URL (default "+defaultAPIURL+")")
	_ = cmd.MarkFlagRequired("with-token")

	return cmd
}

func LogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
