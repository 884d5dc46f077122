package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"grants-cloud/internal/auth"
	budget "grants-cloud/internal/budget/domain"
	"grants-cloud/internal/config"
)

var tokenOpts struct {
	subject    string
	name       string
	role       string
	profession string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed API token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		role, ok := auth.NormalizeRole(tokenOpts.role)
		if !ok {
			return fmt.Errorf("unknown role %q", tokenOpts.role)
		}
		profession := budget.ParseProfession(tokenOpts.profession)
		if tokenOpts.profession != "" && profession == budget.ProfessionNone {
			return fmt.Errorf("unknown profession %q", tokenOpts.profession)
		}
		token, err := auth.IssueJWT(auth.Identity{
			Subject:    tokenOpts.subject,
			FullName:   tokenOpts.name,
			Role:       role,
			Profession: profession,
		}, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOpts.subject, "subject", "", "user id")
	tokenCmd.Flags().StringVar(&tokenOpts.name, "name", "", "full name printed on signatures")
	tokenCmd.Flags().StringVar(&tokenOpts.role, "role", string(auth.RoleViewer), "viewer, editor or admin")
	tokenCmd.Flags().StringVar(&tokenOpts.profession, "profession", "", "signer profession label")
	_ = tokenCmd.MarkFlagRequired("subject")
}
