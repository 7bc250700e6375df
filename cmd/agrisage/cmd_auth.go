package main

import (
	"github.com/spf13/cobra"

	"github.com/kerala-agrisage/agrisage/internal/core"
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE:  runSignup,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE:  runLogout,
}

var (
	authEmail    string
	authPassword string
	signupName   string
	signupPhone  string
	signupPlace  string
	signupCrop   string
)

func init() {
	for _, c := range []*cobra.Command{signupCmd, loginCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "Account email (required)")
		c.Flags().StringVar(&authPassword, "password", "", "Account password (required)")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	signupCmd.Flags().StringVar(&signupName, "name", "", "Full name")
	signupCmd.Flags().StringVar(&signupPhone, "phone", "", "Phone number")
	signupCmd.Flags().StringVar(&signupPlace, "location", "", "Farm location, e.g. Thrissur")
	signupCmd.Flags().StringVar(&signupCrop, "crop", "", "Primary crop")

	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd)
}

func runSignup(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}
	s, err := c.SignUp(ctx, core.SignUpRequest{
		Email: authEmail, Password: authPassword, FullName: signupName,
		Phone: signupPhone, Location: signupPlace, PrimaryCrop: signupCrop,
	})
	if err != nil {
		return err
	}
	printf(cmd, "Welcome to AgriSage, %s!\n", s.User.Email)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}
	s, err := c.SignIn(ctx, authEmail, authPassword)
	if err != nil {
		return err
	}
	printf(cmd, "Signed in as %s\n", s.User.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}
	if err := c.SignOut(ctx); err != nil {
		return err
	}
	printf(cmd, "Signed out\n")
	return nil
}
