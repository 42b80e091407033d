package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sykell/link-health/internal/db"
	"github.com/sykell/link-health/internal/service"
)

const minPasswordLength = 6

// seedOptions holds seed configuration
type seedOptions struct {
	Username string
	Password string
	Email    string
	Force    bool
}

func (o seedOptions) validate() error {
	if o.Username == "" {
		return errors.New("username cannot be empty")
	}
	if len(o.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}
	return nil
}

func newSeedCmd() *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			components, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			defer components.Close()

			return seedUser(components.DB, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.Username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&opts.Password, "password", "adminpass", "admin password")
	cmd.Flags().StringVar(&opts.Email, "email", "", "address that receives link alerts")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "recreate the user if it exists")
	return cmd
}

// seedUser creates the user described by opts, replacing an existing one
// only when opts.Force is set.
func seedUser(dbConn *gorm.DB, opts seedOptions, out io.Writer) error {
	existing, err := service.GetUserByUsername(dbConn, opts.Username)
	switch {
	case err == nil:
		if !opts.Force {
			fmt.Fprintf(out, "User '%s' already exists. Use --force to recreate.\n", opts.Username)
			return nil
		}
		fmt.Fprintf(out, "Recreating user '%s'...\n", opts.Username)
		if err := dbConn.Where("user_id = ?", existing.ID).Delete(&db.TrackedLink{}).Error; err != nil {
			return fmt.Errorf("delete links of existing user: %w", err)
		}
		if err := dbConn.Delete(existing).Error; err != nil {
			return fmt.Errorf("delete existing user: %w", err)
		}
	case !errors.Is(err, service.ErrUserNotFound):
		return fmt.Errorf("check existing user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := service.CreateUser(dbConn, opts.Username, opts.Email, string(hashed))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Created user %s (id %d)\n", user.Username, user.ID)
	return nil
}
