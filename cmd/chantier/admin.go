package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
)

func newCreateAdminCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Crée un compte administrateur vérifié",
		Long: `Crée un administrateur dont l'email est déjà vérifié.

Sans --email ni --password, les valeurs sont demandées de façon interactive:
  chantier create-admin
  chantier create-admin --email admin@chantier-direct.fr`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if email == "" {
				if email, err = promptEmail(); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = promptPassword(); err != nil {
					return err
				}
			}

			container, err := c.container()
			if err != nil {
				return err
			}
			defer container.Close()

			user, err := container.CreateAdmin(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Administrateur %s créé (id %d).\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email de l'administrateur")
	cmd.Flags().StringVar(&password, "password", "", "mot de passe (demandé si absent)")
	return cmd
}

func validateEmail(input string) error {
	if errs := dto.Validate(struct {
		Email string `json:"email" validate:"required,email"`
	}{input}); errs != nil {
		return errors.New("email " + errs["email"])
	}
	return nil
}

func promptEmail() (string, error) {
	p := promptui.Prompt{Label: "Email", Validate: validateEmail}
	return p.Run()
}

// promptPassword asks twice with masked input / Demande deux fois, saisie masquée
func promptPassword() (string, error) {
	p := promptui.Prompt{
		Label: "Mot de passe",
		Mask:  '*',
		Validate: func(input string) error {
			if input == "" {
				return errors.New("mot de passe requis")
			}
			return nil
		},
	}
	password, err := p.Run()
	if err != nil {
		return "", err
	}

	confirm := promptui.Prompt{
		Label: "Confirmation",
		Mask:  '*',
		Validate: func(input string) error {
			if input != password {
				return errors.New("les mots de passe ne correspondent pas")
			}
			return nil
		},
	}
	if _, err := confirm.Run(); err != nil {
		return "", err
	}
	return password, nil
}
